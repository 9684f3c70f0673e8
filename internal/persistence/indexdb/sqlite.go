package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
	"github.com/HBIDamian/CustomJukebox/internal/sim/world"
)

const schemaVersion = "1"

// SQLiteIndex is a queryable copy of build history and jukebox audit. Writes
// are queued to one goroutine and dropped when the queue is full; the JSONL
// logs remain the source of truth for audit.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAudit atomic.Uint64
	dropBuild atomic.Uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqBuild
)

type req struct {
	kind reqKind

	audit world.AuditEntry
	build BuildRecord
}

// BuildRecord is one pack build, successful or not.
type BuildRecord struct {
	ID           string
	StartedAt    time.Time
	Duration     time.Duration
	OK           bool
	Stage        string
	Error        string
	ArtifactPath string
	SHA256       string
	Size         int64
	HeaderUUID   string
	ModuleUUID   string
	CatalogHash  string
	Records      []BuildRecordEntry
}

type BuildRecordEntry struct {
	Index      int
	ItemID     string
	SoundEvent string
	Name       string
	AudioFile  string
	Included   bool
	Reason     string
}

type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropAuditTotal uint64
	DropBuildTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 4096)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS builds (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			stage TEXT,
			error TEXT,
			artifact_path TEXT NOT NULL,
			sha256 TEXT,
			size INTEGER NOT NULL,
			header_uuid TEXT,
			module_uuid TEXT,
			catalog_hash TEXT,
			included INTEGER NOT NULL,
			skipped INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at);`,
		`CREATE TABLE IF NOT EXISTS build_records (
			build_id TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			sound_event TEXT NOT NULL,
			name TEXT NOT NULL,
			audio_file TEXT NOT NULL,
			included INTEGER NOT NULL,
			reason TEXT,
			PRIMARY KEY (build_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			world TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			sound_event TEXT NOT NULL,
			item_id TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(world, x, z, y, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropAuditTotal: s.dropAudit.Load(),
		DropBuildTotal: s.dropBuild.Load(),
	}
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordBuild(b BuildRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqBuild, build: b}:
	default:
		s.dropBuild.Add(1)
	}
}

// UpsertCatalog stores the record catalog and the tuning in effect.
func (s *SQLiteIndex) UpsertCatalog(cat *catalogs.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cat.Records()); len(b) > 0 {
		rows = append(rows, kv{name: "records", digest: cat.Digest, json: b})
	}
	// Tuning: store the values we actually apply (canonical JSON).
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT INTO audits(tick,seq,actor,action,world,x,y,z,sound_event,item_id,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertBuild, _ := s.db.Prepare(`INSERT OR REPLACE INTO builds(id,started_at,duration_ms,ok,stage,error,artifact_path,sha256,size,header_uuid,module_uuid,catalog_hash,included,skipped) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertBuildRecord, _ := s.db.Prepare(`INSERT OR REPLACE INTO build_records(build_id,idx,item_id,sound_event,name,audio_file,included,reason) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertAudit, insertBuild, insertBuildRecord} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	// An open tx also holds the only connection, so idle periods must
	// commit too.
	flush := time.NewTicker(commitMaxWait)
	defer flush.Stop()

	for {
		var r req
		select {
		case <-flush.C:
			commit()
			continue
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					int64(a.Tick),
					seq,
					a.Actor,
					a.Action,
					a.World,
					a.Pos[0], a.Pos[1], a.Pos[2],
					a.SoundEvent,
					a.ItemID,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqBuild:
			b := r.build
			included, skipped := 0, 0
			for _, e := range b.Records {
				if e.Included {
					included++
				} else {
					skipped++
				}
			}
			if insertBuild == nil || insertBuildRecord == nil {
				continue
			}
			if _, err := tx.Stmt(insertBuild).Exec(
				b.ID,
				b.StartedAt.UTC().Format(time.RFC3339Nano),
				b.Duration.Milliseconds(),
				boolInt(b.OK),
				b.Stage,
				b.Error,
				b.ArtifactPath,
				b.SHA256,
				b.Size,
				b.HeaderUUID,
				b.ModuleUUID,
				b.CatalogHash,
				included,
				skipped,
			); err != nil {
				rollback()
				continue
			}
			opCount++
			for _, e := range b.Records {
				if _, err := tx.Stmt(insertBuildRecord).Exec(b.ID, e.Index, e.ItemID, e.SoundEvent, e.Name, e.AudioFile, boolInt(e.Included), e.Reason); err != nil {
					rollback()
					break
				}
				opCount++
			}
			// Builds are rare; make them visible right away.
			commit()
			continue
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
