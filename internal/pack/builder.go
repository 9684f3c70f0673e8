package pack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/HBIDamian/CustomJukebox/internal/persistence/archive"
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
)

// Archiver turns the staging tree into one artifact at dst, replacing any
// previous artifact only on success.
type Archiver interface {
	Archive(ctx context.Context, srcDir, dst string) error
}

// Build stages. A BuildError names the stage that failed.
const (
	StageLock     = "lock"
	StageStaging  = "staging"
	StageDocument = "document"
	StageArchive  = "archive"
)

var ErrStagingBusy = errors.New("staging directory is locked by another build")

type BuildError struct {
	Stage string
	Path  string
	Err   error
}

func (e *BuildError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("pack build: %s %s: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("pack build: %s: %v", e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

type Config struct {
	PackName         string
	Description      string
	MinEngineVersion [3]int
	// IconPath is copied as pack_icon.png when set; otherwise an icon is generated.
	IconPath     string
	ArtifactPath string

	Archiver Archiver
	Logger   *log.Logger
	NewUUID  func() uuid.UUID
	Now      func() time.Time
}

func ConfigFromTuning(t tuning.Tuning) Config {
	var mev [3]int
	copy(mev[:], t.Pack.MinEngineVersion)
	return Config{
		PackName:         t.Pack.Name,
		Description:      t.Pack.Description,
		MinEngineVersion: mev,
		IconPath:         t.Pack.Icon,
		ArtifactPath:     t.ArtifactPath,
	}
}

type Skipped struct {
	Record catalogs.Record
	Reason string
}

type Result struct {
	Included     []catalogs.Record
	Skipped      []Skipped
	ArtifactPath string
	SHA256       string
	Size         int64
	HeaderUUID   string
	ModuleUUID   string
	CatalogHash  string
	StartedAt    time.Time
	Duration     time.Duration
}

// IncludedIndices lists the catalog indices that made it into the bundle.
func (r Result) IncludedIndices() []int {
	out := make([]int, 0, len(r.Included))
	for _, rec := range r.Included {
		out = append(out, rec.Index)
	}
	return out
}

type Builder struct {
	cfg Config
	log *log.Logger
}

func NewBuilder(cfg Config) *Builder {
	if cfg.Archiver == nil {
		cfg.Archiver = archive.ZipArchiver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.NewUUID == nil {
		cfg.NewUUID = uuid.New
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PackName == "" {
		cfg.PackName = "CustomJukebox"
	}
	if cfg.MinEngineVersion == ([3]int{}) {
		cfg.MinEngineVersion = [3]int{1, 20, 0}
	}
	return &Builder{cfg: cfg, log: cfg.Logger}
}

// Build regenerates stagingDir from scratch and packs it into the configured
// artifact. Per-record problems skip the record; anything else returns a
// *BuildError and leaves the previous artifact in place.
func (b *Builder) Build(ctx context.Context, cat *catalogs.Catalog, audioDir, stagingDir string) (Result, error) {
	res := Result{
		ArtifactPath: b.cfg.ArtifactPath,
		StartedAt:    b.cfg.Now(),
	}
	if cat != nil {
		res.CatalogHash = cat.Digest
	}
	if b.cfg.ArtifactPath == "" {
		return res, &BuildError{Stage: StageArchive, Err: errors.New("no artifact path configured")}
	}
	if err := tuning.CheckLayout(audioDir, stagingDir, b.cfg.ArtifactPath); err != nil {
		return res, &BuildError{Stage: StageStaging, Path: stagingDir, Err: err}
	}

	stagingDir = filepath.Clean(stagingDir)
	if err := os.MkdirAll(filepath.Dir(stagingDir), 0o755); err != nil {
		return res, &BuildError{Stage: StageLock, Path: stagingDir, Err: err}
	}
	lock := flock.New(stagingDir + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return res, &BuildError{Stage: StageLock, Path: stagingDir, Err: err}
	}
	if !ok {
		return res, &BuildError{Stage: StageLock, Path: stagingDir, Err: ErrStagingBusy}
	}
	defer func() { _ = lock.Unlock() }()

	if err := resetStaging(stagingDir); err != nil {
		return res, &BuildError{Stage: StageStaging, Path: stagingDir, Err: err}
	}

	for _, rec := range cat.Records() {
		if err := ctx.Err(); err != nil {
			return res, &BuildError{Stage: StageStaging, Err: err}
		}
		if reason := b.stageRecord(rec, audioDir, stagingDir); reason != "" {
			b.log.Printf("warn: record %d (%s): %s; excluded from pack", rec.Index, rec.AudioFile, reason)
			res.Skipped = append(res.Skipped, Skipped{Record: rec, Reason: reason})
			continue
		}
		res.Included = append(res.Included, rec)
	}

	res.HeaderUUID = b.cfg.NewUUID().String()
	res.ModuleUUID = b.cfg.NewUUID().String()
	for res.ModuleUUID == res.HeaderUUID {
		res.ModuleUUID = b.cfg.NewUUID().String()
	}

	docs := []struct {
		rel    string
		schema string
		v      any
	}{
		{"sounds/sound_definitions.json", schemaSoundDefinitions, newSoundDefinitions(res.Included)},
		{"textures/item_texture.json", schemaItemTexture, newItemTextureAtlas(b.cfg.PackName, res.Included)},
		{"manifest.json", schemaManifest, newManifest(b.cfg.PackName, b.cfg.Description, b.cfg.MinEngineVersion, res.HeaderUUID, res.ModuleUUID)},
	}
	for _, d := range docs {
		if err := validateDocument(d.schema, d.v); err != nil {
			return res, &BuildError{Stage: StageDocument, Path: d.rel, Err: err}
		}
		if err := writeJSON(filepath.Join(stagingDir, filepath.FromSlash(d.rel)), d.v); err != nil {
			return res, &BuildError{Stage: StageDocument, Path: d.rel, Err: err}
		}
	}
	if err := b.writePackIcon(stagingDir); err != nil {
		return res, &BuildError{Stage: StageDocument, Path: "pack_icon.png", Err: err}
	}

	if err := b.cfg.Archiver.Archive(ctx, stagingDir, b.cfg.ArtifactPath); err != nil {
		return res, &BuildError{Stage: StageArchive, Path: b.cfg.ArtifactPath, Err: err}
	}
	sum, size, err := fileDigest(b.cfg.ArtifactPath)
	if err != nil {
		return res, &BuildError{Stage: StageArchive, Path: b.cfg.ArtifactPath, Err: err}
	}
	res.SHA256 = sum
	res.Size = size
	res.Duration = b.cfg.Now().Sub(res.StartedAt)

	b.log.Printf("built %s: %d records (%d skipped) sha256=%s", b.cfg.ArtifactPath, len(res.Included), len(res.Skipped), sum)
	return res, nil
}

// stageRecord copies the audio, writes the texture and the item document for
// one record. It returns a non-empty reason when the record must be left out;
// partial output for that record is removed.
func (b *Builder) stageRecord(rec catalogs.Record, audioDir, stagingDir string) string {
	src := filepath.Join(audioDir, filepath.FromSlash(rec.AudioFile))
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "audio file missing"
		}
		return fmt.Sprintf("stat audio: %v", err)
	}
	if info.IsDir() {
		return "audio path is a directory"
	}

	soundDst := filepath.Join(stagingDir, "sounds", rec.BaseName()+filepath.Ext(src))
	textureDst := filepath.Join(stagingDir, "textures", "items", atlasKey(rec)+".png")
	itemDst := filepath.Join(stagingDir, "items", atlasKey(rec)+".json")
	cleanup := func() {
		_ = os.Remove(soundDst)
		_ = os.Remove(textureDst)
		_ = os.Remove(itemDst)
	}

	if err := archive.CopyFile(src, soundDst); err != nil {
		cleanup()
		return fmt.Sprintf("copy audio: %v", err)
	}
	if err := b.writeRecordTexture(rec, audioDir, textureDst); err != nil {
		cleanup()
		return fmt.Sprintf("texture: %v", err)
	}
	doc := newItemDocument(rec)
	if err := validateDocument(schemaItem, doc); err != nil {
		cleanup()
		return fmt.Sprintf("item document: %v", err)
	}
	if err := writeJSON(itemDst, doc); err != nil {
		cleanup()
		return fmt.Sprintf("item document: %v", err)
	}
	return ""
}

// writeRecordTexture uses <audioDir>/<base>.png when the operator supplied one.
func (b *Builder) writeRecordTexture(rec catalogs.Record, audioDir, dst string) error {
	custom := filepath.Join(audioDir, filepath.Dir(filepath.FromSlash(rec.AudioFile)), rec.BaseName()+".png")
	if _, err := os.Stat(custom); err == nil {
		return archive.CopyFile(custom, dst)
	}
	img, err := placeholderPNG(itemTextureSize, rec.SoundEvent, rec.Name)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, img, 0o644)
}

func (b *Builder) writePackIcon(stagingDir string) error {
	dst := filepath.Join(stagingDir, "pack_icon.png")
	if b.cfg.IconPath != "" {
		err := archive.CopyFile(b.cfg.IconPath, dst)
		if err == nil {
			return nil
		}
		b.log.Printf("warn: pack icon %s: %v; generating one", b.cfg.IconPath, err)
	}
	img, err := placeholderPNG(packIconSize, b.cfg.PackName, b.cfg.PackName)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, img, 0o644)
}

func resetStaging(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	for _, sub := range []string{"sounds", "items", filepath.Join("textures", "items")} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}

func fileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
