package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
)

type IDMode string

const (
	IDModeIndex IDMode = "index"
	IDModeHash  IDMode = "hash"
)

type Options struct {
	ItemNamespace          string
	SoundNamespace         string
	IDMode                 IDMode
	DefaultDurationSeconds int
}

func OptionsFromTuning(t tuning.Tuning) Options {
	return Options{
		ItemNamespace:          t.ItemNamespace,
		SoundNamespace:         t.SoundNamespace,
		IDMode:                 IDMode(t.ItemIDMode),
		DefaultDurationSeconds: t.DefaultDurationSeconds,
	}
}

// Record is immutable after Load; accessors hand out copies.
type Record struct {
	Index           int      `json:"index"`
	Name            string   `json:"name"`
	AudioFile       string   `json:"audio_file"`
	DurationSeconds int      `json:"duration_seconds"`
	ItemID          string   `json:"item_id"`
	SoundEvent      string   `json:"sound_event"`
	Lore            []string `json:"lore"`
}

// BaseName is the audio file name without directory or extension.
func (r Record) BaseName() string { return baseName(r.AudioFile) }

func (r Record) clone() Record {
	r.Lore = append([]string(nil), r.Lore...)
	return r
}

type Catalog struct {
	records []Record
	byItem  map[string]int
	bySound map[string]int
	Digest  string
}

type Problem struct {
	Entry  int
	Name   string
	File   string
	Reason string
}

// LoadError reports entries that were skipped. The catalog returned alongside
// it is still valid and contains every entry that survived.
type LoadError struct {
	Problems []Problem
	Empty    bool
}

func (e *LoadError) Error() string {
	if e.Empty && len(e.Problems) == 0 {
		return "catalog: no records configured"
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("entry %d (%s): %s", p.Entry, p.File, p.Reason))
	}
	msg := fmt.Sprintf("catalog: %d entries skipped: %s", len(e.Problems), strings.Join(parts, "; "))
	if e.Empty {
		msg += " (catalog is empty)"
	}
	return msg
}

// Load normalizes raw entries into a catalog. Identifiers are assigned in
// input order after skips. A nil logger discards warnings.
func Load(entries []tuning.RecordEntry, opts Options, logger *log.Logger) (*Catalog, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.DefaultDurationSeconds < 1 {
		opts.DefaultDurationSeconds = 120
	}
	if opts.IDMode == "" {
		opts.IDMode = IDModeIndex
	}

	c := &Catalog{
		byItem:  map[string]int{},
		bySound: map[string]int{},
	}
	var lerr LoadError
	skip := func(i int, e tuning.RecordEntry, reason string) {
		lerr.Problems = append(lerr.Problems, Problem{Entry: i, Name: e.Name, File: e.File, Reason: reason})
		logger.Printf("warn: catalog entry %d (%q): %s; skipped", i, e.File, reason)
	}

	names := map[string]struct{}{}
	for i, e := range entries {
		file := strings.TrimSpace(e.File)
		if file == "" {
			skip(i, e, "missing file")
			continue
		}
		base := baseName(file)
		if base == "" {
			skip(i, e, "file has no base name")
			continue
		}
		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = base
		}
		if _, dup := names[name]; dup {
			skip(i, e, fmt.Sprintf("duplicate name %q", name))
			continue
		}
		sound := opts.SoundNamespace + "." + base
		if _, dup := c.bySound[sound]; dup {
			skip(i, e, fmt.Sprintf("sound event %q already used", sound))
			continue
		}

		dur := e.Length
		if dur < 1 {
			if e.Length != 0 {
				logger.Printf("warn: catalog entry %d (%q): length %d < 1; using %ds", i, file, e.Length, opts.DefaultDurationSeconds)
			}
			dur = opts.DefaultDurationSeconds
		}
		lore := append([]string(nil), e.Lore...)
		if len(lore) == 0 {
			lore = []string{file}
		}

		idx := len(c.records)
		var itemID string
		switch opts.IDMode {
		case IDModeHash:
			itemID = opts.ItemNamespace + ":" + fileHash(file)
		default:
			itemID = opts.ItemNamespace + ":" + strconv.Itoa(idx)
		}
		if _, dup := c.byItem[itemID]; dup {
			skip(i, e, fmt.Sprintf("item id %q already used", itemID))
			continue
		}

		names[name] = struct{}{}
		c.records = append(c.records, Record{
			Index:           idx,
			Name:            name,
			AudioFile:       file,
			DurationSeconds: dur,
			ItemID:          itemID,
			SoundEvent:      sound,
			Lore:            lore,
		})
		c.byItem[itemID] = idx
		c.bySound[sound] = idx
	}
	c.Digest = c.digest()

	if len(c.records) == 0 {
		lerr.Empty = true
		logger.Printf("warn: catalog is empty; jukeboxes will not play custom records")
	}
	if lerr.Empty || len(lerr.Problems) > 0 {
		return c, &lerr
	}
	return c, nil
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Records returns the records in catalog order.
func (c *Catalog) Records() []Record {
	if c == nil {
		return nil
	}
	out := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.clone())
	}
	return out
}

func (c *Catalog) ByItemID(id string) (Record, bool) {
	if c == nil {
		return Record{}, false
	}
	i, ok := c.byItem[id]
	if !ok {
		return Record{}, false
	}
	return c.records[i].clone(), true
}

func (c *Catalog) BySoundEvent(sound string) (Record, bool) {
	if c == nil {
		return Record{}, false
	}
	i, ok := c.bySound[sound]
	if !ok {
		return Record{}, false
	}
	return c.records[i].clone(), true
}

// Restrict returns a catalog holding only the records whose Index is listed.
// Identifiers are kept as assigned by Load.
func (c *Catalog) Restrict(indices []int) *Catalog {
	keep := map[int]struct{}{}
	for _, i := range indices {
		keep[i] = struct{}{}
	}
	out := &Catalog{byItem: map[string]int{}, bySound: map[string]int{}}
	if c == nil {
		out.Digest = out.digest()
		return out
	}
	for _, r := range c.records {
		if _, ok := keep[r.Index]; !ok {
			continue
		}
		pos := len(out.records)
		out.records = append(out.records, r.clone())
		out.byItem[r.ItemID] = pos
		out.bySound[r.SoundEvent] = pos
	}
	out.Digest = out.digest()
	return out
}

func (c *Catalog) digest() string {
	recs := append([]Record(nil), c.records...)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Index < recs[j].Index })
	b, _ := json.Marshal(recs)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func baseName(file string) string {
	b := path.Base(strings.ReplaceAll(file, "\\", "/"))
	if b == "." || b == "/" {
		return ""
	}
	return strings.TrimSuffix(b, path.Ext(b))
}

func fileHash(file string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(file))
	return fmt.Sprintf("%08x", h.Sum32())
}
