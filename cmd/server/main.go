package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/HBIDamian/CustomJukebox/internal/pack"
	persistlog "github.com/HBIDamian/CustomJukebox/internal/persistence/log"
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
	"github.com/HBIDamian/CustomJukebox/internal/sim/world"
	"github.com/HBIDamian/CustomJukebox/internal/transport/packs"
	"github.com/HBIDamian/CustomJukebox/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "overworld", "world id")
		configPath = flag.String("config", "./configs/jukebox.yaml", "path to jukebox.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory (audit logs, index)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (build history + audit)")
		watch      = flag.Bool("watch", false, "rebuild the pack when the audio directory changes (or set watch_audio_dir)")
		packURL    = flag.String("pack_url", packs.DefaultPath, "resource pack url advertised to clients")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	packLogger := log.New(os.Stdout, "[pack] ", log.LstdFlags|log.Lmicroseconds)
	jukeboxLogger := log.New(os.Stdout, "[jukebox] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*configPath)
	if err != nil {
		// A broken config disables custom audio; it never stops the server.
		logger.Printf("warn: load config: %v; using defaults", err)
		tune = tuning.Defaults()
	}

	cat, err := catalogs.Load(tune.Records, catalogs.OptionsFromTuning(tune), jukeboxLogger)
	if err != nil {
		var lerr *catalogs.LoadError
		if !errors.As(err, &lerr) {
			logger.Fatalf("load catalog: %v", err)
		}
		logger.Printf("warn: %v", err)
	}

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Printf("warn: open index backend: %v; continuing without index", err)
		idx = nil
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalog(cat, tune); err != nil {
			logger.Printf("index backend: upsert catalog: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	handler := packs.NewHandler(*packURL, tune.PacksRequired)
	pr := newPackRuntime(tune, handler, idx, packLogger)

	// Without a pack nobody can hear custom records, so the world starts with
	// an empty catalog until a build succeeds.
	worldCat := cat.Restrict(nil)
	if restricted, _, err := pr.rebuild(ctx, cat); err != nil {
		logger.Printf("warn: pack build failed: %v; custom audio disabled", err)
	} else {
		worldCat = restricted
	}

	wcfg := world.ConfigFromTuning(*worldID, tune)
	wcfg.Pack = handler.Ref()
	wcfg.Logger = logger
	wcfg.RegistryLogger = jukeboxLogger
	w, err := world.New(wcfg, worldCat)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	pr.reload = func(r world.Reload) {
		select {
		case w.Reload() <- r:
		case <-ctx.Done():
		}
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()
	if idx != nil {
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		w.SetAuditLogger(auditLog)
	}

	if *watch || tune.WatchAudioDir {
		startWatcher(ctx, tune.AudioDir, func() {
			if _, _, err := pr.rebuild(ctx, cat); err != nil {
				logger.Printf("warn: pack rebuild failed: %v; keeping previous pack", err)
			}
		}, logger)
	}

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, pr, idx))
	mux.Handle(*packURL, handler)
	mux.HandleFunc(*packURL+"/info", handler.InfoHandler())
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

	if envBool("CJ_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/jukeboxes", jukeboxesHandler(w))
	} else {
		logger.Printf("admin endpoints disabled (CJ_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("CJ_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (world=%s records=%d)", *addr, *worldID, worldCat.Len())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}

	<-worldDone
	if n := w.Shutdown(); n > 0 {
		logger.Printf("stopped %d playing jukeboxes", n)
	}
}

func startWatcher(ctx context.Context, dir string, onChange func(), logger *log.Logger) {
	wt, err := pack.NewWatcher(dir)
	if err != nil {
		logger.Printf("warn: watch %s: %v; audio changes need a restart", dir, err)
		return
	}
	logger.Printf("watching %s for audio changes", dir)
	go func() {
		if err := wt.Run(ctx, onChange); err != nil && err != context.Canceled {
			logger.Printf("watcher stopped: %v", err)
		}
	}()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
