package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HBIDamian/CustomJukebox/internal/persistence/indexdb"
	"github.com/HBIDamian/CustomJukebox/internal/protocol"
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
	"github.com/HBIDamian/CustomJukebox/internal/sim/world"
	"github.com/HBIDamian/CustomJukebox/internal/transport/packs"
)

// testTuning points every path into a temp dir. Only a.ogg exists on disk.
func testTuning(t *testing.T) tuning.Tuning {
	t.Helper()
	dir := t.TempDir()
	tune := tuning.Defaults()
	tune.AudioDir = filepath.Join(dir, "audio")
	tune.StagingDir = filepath.Join(dir, "data", "pack")
	tune.ArtifactPath = filepath.Join(dir, "data", "customjukebox.mcpack")
	tune.Records = []tuning.RecordEntry{
		{Name: "A", File: "a.ogg", Length: 30},
		{Name: "B", File: "b.ogg", Length: 30},
	}
	if err := os.MkdirAll(tune.AudioDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tune.AudioDir, "a.ogg"), []byte("OggS"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return tune
}

func loadCatalog(t *testing.T, tune tuning.Tuning) *catalogs.Catalog {
	t.Helper()
	cat, err := catalogs.Load(tune.Records, catalogs.OptionsFromTuning(tune), nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func TestPackRuntime_RebuildRestrictsAndReloads(t *testing.T) {
	tune := testTuning(t)
	cat := loadCatalog(t, tune)
	handler := packs.NewHandler("", true)
	pr := newPackRuntime(tune, handler, nil, nil)
	var reloads []world.Reload
	pr.reload = func(r world.Reload) { reloads = append(reloads, r) }

	restricted, ref, err := pr.rebuild(context.Background(), cat)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if restricted.Len() != 1 {
		t.Fatalf("restricted len=%d want 1", restricted.Len())
	}
	if _, ok := restricted.ByItemID("customjukebox:1"); ok {
		t.Fatalf("record with missing audio still playable")
	}
	if ref == nil || ref.SHA256 == "" || !ref.Required {
		t.Fatalf("ref=%+v", ref)
	}
	if len(reloads) != 1 || reloads[0].Catalog.Len() != 1 || reloads[0].Pack.SHA256 != ref.SHA256 {
		t.Fatalf("reloads=%+v", reloads)
	}
	if !pr.lastOK.Load() || pr.builds.Load() != 1 || pr.included.Load() != 1 {
		t.Fatalf("lastOK=%v builds=%d included=%d", pr.lastOK.Load(), pr.builds.Load(), pr.included.Load())
	}
}

func TestPackRuntime_FailedRebuildKeepsServedPack(t *testing.T) {
	tune := testTuning(t)
	cat := loadCatalog(t, tune)
	handler := packs.NewHandler("", true)
	pr := newPackRuntime(tune, handler, nil, nil)
	var reloads int
	pr.reload = func(world.Reload) { reloads++ }

	if _, _, err := pr.rebuild(context.Background(), cat); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	before, _ := handler.Current()

	// A staging dir under a regular file cannot be created.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	pr.stagingDir = filepath.Join(blocker, "pack")

	if _, _, err := pr.rebuild(context.Background(), cat); err == nil {
		t.Fatalf("expected build error")
	}
	after, ok := handler.Current()
	if !ok || after.SHA256 != before.SHA256 {
		t.Fatalf("served pack changed: before=%s after=%s ok=%v", before.SHA256, after.SHA256, ok)
	}
	if reloads != 1 {
		t.Fatalf("reloads=%d want 1", reloads)
	}
	if pr.lastOK.Load() || pr.failures.Load() != 1 || pr.builds.Load() != 2 {
		t.Fatalf("lastOK=%v failures=%d builds=%d", pr.lastOK.Load(), pr.failures.Load(), pr.builds.Load())
	}
}

func TestPackRuntime_RecordsBuildsInIndex(t *testing.T) {
	tune := testTuning(t)
	cat := loadCatalog(t, tune)
	dataDir := t.TempDir()
	idx, err := openRuntimeIndex(dataDir, false)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	pr := newPackRuntime(tune, packs.NewHandler("", false), idx, nil)
	if _, _, err := pr.rebuild(context.Background(), cat); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := indexdb.OpenReader(indexPath(dataDir))
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer db.Close()
	builds, err := indexdb.ListBuilds(context.Background(), db, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(builds) != 1 || !builds[0].OK || builds[0].Included != 1 || builds[0].Skipped != 1 {
		t.Fatalf("builds=%+v", builds)
	}
}

func TestOpenRuntimeIndex_Disabled(t *testing.T) {
	idx, err := openRuntimeIndex(t.TempDir(), true)
	if err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}
	t.Setenv("CJ_INDEX_BACKEND", "none")
	idx, err = openRuntimeIndex(t.TempDir(), false)
	if err != nil || idx != nil {
		t.Fatalf("none: idx=%v err=%v", idx, err)
	}
	t.Setenv("CJ_INDEX_BACKEND", "postgres")
	if _, err := openRuntimeIndex(t.TempDir(), false); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func newServedWorld(t *testing.T) (*world.World, *packRuntime) {
	t.Helper()
	tune := testTuning(t)
	cat := loadCatalog(t, tune)
	pr := newPackRuntime(tune, packs.NewHandler("", true), nil, nil)
	restricted, ref, err := pr.rebuild(context.Background(), cat)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	cfg := world.ConfigFromTuning("overworld", tune)
	cfg.Pack = ref
	w, err := world.New(cfg, restricted)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w, pr
}

func TestMetricsHandler(t *testing.T) {
	w, pr := newServedWorld(t)
	rec := httptest.NewRecorder()
	metricsHandler(w, pr, nil)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`customjukebox_world_tick{world="overworld"} 0`,
		`customjukebox_catalog_records{world="overworld"} 1`,
		`customjukebox_jukeboxes_playing{world="overworld"} 0`,
		"customjukebox_pack_last_build_ok 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "customjukebox_index_queue_depth") {
		t.Fatalf("index metrics without an index")
	}
}

func TestJukeboxesHandler(t *testing.T) {
	w, _ := newServedWorld(t)

	out := make(chan []byte, 64)
	resp := make(chan world.JoinResponse, 1)
	w.StepOnce([]world.JoinRequest{{Name: "steve", Out: out, Resp: resp}}, nil, nil)
	id := (<-resp).Welcome.OccupantID
	w.StepOnce(nil, nil, []world.ActionEnvelope{{OccupantID: id, Action: world.Action{Type: protocol.TypeHold, ItemID: "customjukebox:0"}}})
	w.StepOnce(nil, nil, []world.ActionEnvelope{{OccupantID: id, Action: world.Action{Type: protocol.TypeInteract, Block: geom.BlockPos{X: 3, Y: 64, Z: -1}}}})

	h := jukeboxesHandler(w)

	remote := httptest.NewRequest(http.MethodGet, "/admin/v1/jukeboxes", nil)
	remote.RemoteAddr = "203.0.113.9:5555"
	rec := httptest.NewRecorder()
	h(rec, remote)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d", rec.Code)
	}

	local := httptest.NewRequest(http.MethodGet, "/admin/v1/jukeboxes", nil)
	local.RemoteAddr = "127.0.0.1:5555"
	rec = httptest.NewRecorder()
	h(rec, local)
	if rec.Code != http.StatusOK {
		t.Fatalf("local status=%d", rec.Code)
	}
	var got struct {
		WorldID   string        `json:"world_id"`
		Jukeboxes []jukeboxView `json:"jukeboxes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.WorldID != "overworld" || len(got.Jukeboxes) != 1 {
		t.Fatalf("got=%+v", got)
	}
	j := got.Jukeboxes[0]
	if j.Pos != [3]int{3, 64, -1} || j.ItemID != "customjukebox:0" || j.SoundEvent != "customjukebox.a" || j.Duration != 30 {
		t.Fatalf("jukebox=%+v", j)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:8080": true,
		"[::1]:8080":     true,
		"::1":            true,
		"10.0.0.2:8080":  false,
		"example:80":     false,
		"":               false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", in, got, want)
		}
	}
}

type recordingAudit struct{ n int }

func (r *recordingAudit) WriteAudit(world.AuditEntry) error {
	r.n++
	return nil
}

func TestMultiAuditLogger(t *testing.T) {
	a, b := &recordingAudit{}, &recordingAudit{}
	m := multiAuditLogger{a: a, b: b}
	_ = m.WriteAudit(world.AuditEntry{})
	_ = multiAuditLogger{a: a}.WriteAudit(world.AuditEntry{})
	if a.n != 2 || b.n != 1 {
		t.Fatalf("a=%d b=%d", a.n, b.n)
	}
}
