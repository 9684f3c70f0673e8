package main

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/HBIDamian/CustomJukebox/internal/pack"
	"github.com/HBIDamian/CustomJukebox/internal/persistence/indexdb"
	"github.com/HBIDamian/CustomJukebox/internal/protocol"
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
	"github.com/HBIDamian/CustomJukebox/internal/sim/world"
	"github.com/HBIDamian/CustomJukebox/internal/transport/packs"
)

// packRuntime owns the build -> serve -> reload cycle. Builds are serialized;
// a failed build leaves the served artifact and the world's catalog alone.
type packRuntime struct {
	audioDir   string
	stagingDir string

	builder *pack.Builder
	handler *packs.Handler
	idx     runtimeIndex
	log     *log.Logger

	// reload hands a new catalog and pack to the world. Nil skips it.
	reload func(world.Reload)

	mu sync.Mutex

	lastOK   atomic.Bool
	builds   atomic.Uint64
	failures atomic.Uint64
	included atomic.Int64
}

func newPackRuntime(tune tuning.Tuning, handler *packs.Handler, idx runtimeIndex, logger *log.Logger) *packRuntime {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	cfg := pack.ConfigFromTuning(tune)
	cfg.Logger = logger
	return &packRuntime{
		audioDir:   tune.AudioDir,
		stagingDir: tune.StagingDir,
		builder:    pack.NewBuilder(cfg),
		handler:    handler,
		idx:        idx,
		log:        logger,
	}
}

// rebuild builds the pack for cat and, on success, makes it current. It
// returns the catalog restricted to the records that made it into the pack.
func (p *packRuntime) rebuild(ctx context.Context, cat *catalogs.Catalog) (*catalogs.Catalog, *protocol.PackRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.builder.Build(ctx, cat, p.audioDir, p.stagingDir)
	p.builds.Add(1)
	if p.idx != nil {
		p.idx.RecordBuild(indexdb.BuildFromResult(uuid.NewString(), res, err))
	}
	if err != nil {
		p.fail()
		return nil, nil, err
	}

	if err := p.handler.Load(packs.Artifact{
		Path:       res.ArtifactPath,
		SHA256:     res.SHA256,
		HeaderUUID: res.HeaderUUID,
		Version:    pack.PackVersion,
	}); err != nil {
		p.fail()
		return nil, nil, err
	}

	restricted := cat.Restrict(res.IncludedIndices())
	ref := p.handler.Ref()
	p.lastOK.Store(true)
	p.included.Store(int64(restricted.Len()))
	p.log.Printf("pack ready: %d records (%d skipped) sha256=%s", len(res.Included), len(res.Skipped), res.SHA256)

	if p.reload != nil {
		p.reload(world.Reload{Catalog: restricted, Pack: ref})
	}
	return restricted, ref, nil
}

func (p *packRuntime) fail() {
	p.lastOK.Store(false)
	p.failures.Add(1)
}
