package packs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/HBIDamian/CustomJukebox/internal/protocol"
)

const DefaultPath = "/v1/pack"

// Artifact describes one built pack on disk.
type Artifact struct {
	Path       string
	SHA256     string
	HeaderUUID string
	Version    [3]int
}

// Info is what clients are told about the current pack.
type Info struct {
	URL        string    `json:"url"`
	SHA256     string    `json:"sha256"`
	Size       int64     `json:"size"`
	HeaderUUID string    `json:"header_uuid"`
	Version    [3]int    `json:"version"`
	Required   bool      `json:"required"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// Handler serves the current artifact from memory. Load swaps it atomically;
// until the first successful Load every request gets 503.
type Handler struct {
	url      string
	required bool

	mu   sync.RWMutex
	body []byte
	info *Info
}

func NewHandler(url string, required bool) *Handler {
	if url == "" {
		url = DefaultPath
	}
	return &Handler{url: url, required: required}
}

// Load reads the artifact and makes it current. The file's digest must match
// a.SHA256 when one is given; a mismatch keeps the previous artifact.
func (h *Handler) Load(a Artifact) error {
	body, err := os.ReadFile(a.Path)
	if err != nil {
		return fmt.Errorf("pack transport: %w", err)
	}
	sum := sha256.Sum256(body)
	digest := hex.EncodeToString(sum[:])
	if a.SHA256 != "" && a.SHA256 != digest {
		return fmt.Errorf("pack transport: %s digest %s, want %s", a.Path, digest, a.SHA256)
	}
	info := &Info{
		URL:        h.url,
		SHA256:     digest,
		Size:       int64(len(body)),
		HeaderUUID: a.HeaderUUID,
		Version:    a.Version,
		Required:   h.required,
		LoadedAt:   time.Now().UTC(),
	}
	h.mu.Lock()
	h.body = body
	h.info = info
	h.mu.Unlock()
	return nil
}

func (h *Handler) Current() (Info, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.info == nil {
		return Info{}, false
	}
	return *h.info, true
}

// Ref is the WELCOME form of Current, nil when nothing is loaded.
func (h *Handler) Ref() *protocol.PackRef {
	info, ok := h.Current()
	if !ok {
		return nil
	}
	return &protocol.PackRef{
		URL:        info.URL,
		SHA256:     info.SHA256,
		Size:       info.Size,
		HeaderUUID: info.HeaderUUID,
		Version:    info.Version,
		Required:   info.Required,
	}
}

func (h *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		rw.Header().Set("Allow", "GET, HEAD")
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.mu.RLock()
	body, info := h.body, h.info
	h.mu.RUnlock()
	if info == nil {
		http.Error(rw, "no resource pack available", http.StatusServiceUnavailable)
		return
	}

	rw.Header().Set("ETag", `"`+info.SHA256+`"`)
	rw.Header().Set("Content-Type", "application/zip")
	rw.Header().Set("Content-Disposition", `attachment; filename="customjukebox.mcpack"`)
	rw.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(rw, r, "customjukebox.mcpack", info.LoadedAt, bytes.NewReader(body))
}

// InfoHandler reports Current as JSON.
func (h *Handler) InfoHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		info, ok := h.Current()
		if !ok {
			http.Error(rw, "no resource pack available", http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(info)
	}
}
