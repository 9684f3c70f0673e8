package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HBIDamian/CustomJukebox/internal/persistence/indexdb"
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
	"github.com/HBIDamian/CustomJukebox/internal/sim/world"
)

type runtimeIndex interface {
	world.AuditLogger
	Close() error
	UpsertCatalog(cat *catalogs.Catalog, tune tuning.Tuning) error
	RecordBuild(b indexdb.BuildRecord)
	Stats() indexdb.Stats
}

// indexPath is where the server keeps its sqlite read-model under dataDir.
func indexPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "jukebox.sqlite")
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CJ_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(indexPath(dataDir))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported CJ_INDEX_BACKEND: %s", backend)
	}
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
