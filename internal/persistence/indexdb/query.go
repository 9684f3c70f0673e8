package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/HBIDamian/CustomJukebox/internal/pack"
)

// BuildFromResult turns the outcome of a pack build into a row. err is the
// error Build returned, if any.
func BuildFromResult(id string, res pack.Result, err error) BuildRecord {
	b := BuildRecord{
		ID:           id,
		StartedAt:    res.StartedAt,
		Duration:     res.Duration,
		OK:           err == nil,
		ArtifactPath: res.ArtifactPath,
		SHA256:       res.SHA256,
		Size:         res.Size,
		HeaderUUID:   res.HeaderUUID,
		ModuleUUID:   res.ModuleUUID,
		CatalogHash:  res.CatalogHash,
	}
	if err != nil {
		b.Error = err.Error()
		var berr *pack.BuildError
		if errors.As(err, &berr) {
			b.Stage = berr.Stage
		}
	}
	for _, r := range res.Included {
		b.Records = append(b.Records, BuildRecordEntry{
			Index: r.Index, ItemID: r.ItemID, SoundEvent: r.SoundEvent, Name: r.Name, AudioFile: r.AudioFile, Included: true,
		})
	}
	for _, sk := range res.Skipped {
		r := sk.Record
		b.Records = append(b.Records, BuildRecordEntry{
			Index: r.Index, ItemID: r.ItemID, SoundEvent: r.SoundEvent, Name: r.Name, AudioFile: r.AudioFile, Reason: sk.Reason,
		})
	}
	return b
}

type BuildRow struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
	OK           bool      `json:"ok"`
	Stage        string    `json:"stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	ArtifactPath string    `json:"artifact_path"`
	SHA256       string    `json:"sha256,omitempty"`
	Size         int64     `json:"size"`
	HeaderUUID   string    `json:"header_uuid,omitempty"`
	Included     int       `json:"included"`
	Skipped      int       `json:"skipped"`
}

type AuditRow struct {
	Tick       uint64 `json:"tick"`
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	World      string `json:"world"`
	Pos        [3]int `json:"pos"`
	SoundEvent string `json:"sound_event"`
	ItemID     string `json:"item_id"`
}

// OpenReader opens an index for queries without starting a writer.
func OpenReader(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ListBuilds returns the most recent builds first.
func ListBuilds(ctx context.Context, db *sql.DB, limit int) ([]BuildRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT id,started_at,duration_ms,ok,COALESCE(stage,''),COALESCE(error,''),artifact_path,COALESCE(sha256,''),size,COALESCE(header_uuid,''),included,skipped
		FROM builds ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BuildRow
	for rows.Next() {
		var r BuildRow
		var started string
		var ok int
		if err := rows.Scan(&r.ID, &started, &r.DurationMS, &ok, &r.Stage, &r.Error, &r.ArtifactPath, &r.SHA256, &r.Size, &r.HeaderUUID, &r.Included, &r.Skipped); err != nil {
			return nil, err
		}
		r.OK = ok != 0
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// BuildRecords returns the per-record outcome of one build in catalog order.
func BuildRecords(ctx context.Context, db *sql.DB, buildID string) ([]BuildRecordEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT idx,item_id,sound_event,name,audio_file,included,COALESCE(reason,'')
		FROM build_records WHERE build_id=? ORDER BY idx`, buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BuildRecordEntry
	for rows.Next() {
		var e BuildRecordEntry
		var inc int
		if err := rows.Scan(&e.Index, &e.ItemID, &e.SoundEvent, &e.Name, &e.AudioFile, &inc, &e.Reason); err != nil {
			return nil, err
		}
		e.Included = inc != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

type AuditFilter struct {
	Actor string
	World string
	Limit int
}

// ListAudits returns the most recent jukebox transitions first.
func ListAudits(ctx context.Context, db *sql.DB, f AuditFilter) ([]AuditRow, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	rows, err := db.QueryContext(ctx, `SELECT tick,actor,action,world,x,y,z,sound_event,item_id FROM audits
		WHERE (?='' OR actor=?) AND (?='' OR world=?)
		ORDER BY id DESC LIMIT ?`, f.Actor, f.Actor, f.World, f.World, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		var tick int64
		if err := rows.Scan(&tick, &r.Actor, &r.Action, &r.World, &r.Pos[0], &r.Pos[1], &r.Pos[2], &r.SoundEvent, &r.ItemID); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}
