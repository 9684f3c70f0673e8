package packs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, body string) (string, string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "pack.mcpack")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sum := sha256.Sum256([]byte(body))
	return p, hex.EncodeToString(sum[:])
}

func TestHandler_UnavailableBeforeLoad(t *testing.T) {
	h := NewHandler("", true)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultPath, nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code=%d", rec.Code)
	}
	if h.Ref() != nil {
		t.Fatalf("Ref should be nil before Load")
	}
}

func TestHandler_ServesCurrentWithETag(t *testing.T) {
	p, sum := writeArtifact(t, "PK-first")
	h := NewHandler("", true)
	if err := h.Load(Artifact{Path: p, SHA256: sum, HeaderUUID: "h1", Version: [3]int{1, 0, 0}}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultPath, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "PK-first" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("ETag"); got != `"`+sum+`"` {
		t.Fatalf("etag=%q", got)
	}

	req := httptest.NewRequest(http.MethodGet, DefaultPath, nil)
	req.Header.Set("If-None-Match", `"`+sum+`"`)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("conditional code=%d", rec.Code)
	}

	ref := h.Ref()
	if ref == nil || ref.SHA256 != sum || ref.Size != int64(len("PK-first")) || !ref.Required || ref.URL != DefaultPath {
		t.Fatalf("ref=%+v", ref)
	}
}

func TestHandler_BadDigestKeepsPrevious(t *testing.T) {
	p, sum := writeArtifact(t, "PK-first")
	h := NewHandler("", false)
	if err := h.Load(Artifact{Path: p, SHA256: sum}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	p2, _ := writeArtifact(t, "PK-second")
	if err := h.Load(Artifact{Path: p2, SHA256: sum}); err == nil {
		t.Fatalf("expected digest mismatch")
	}
	if err := h.Load(Artifact{Path: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatalf("expected missing file error")
	}
	info, _ := h.Current()
	if info.SHA256 != sum {
		t.Fatalf("previous artifact replaced")
	}
}

func TestHandler_SwapAndInfo(t *testing.T) {
	p1, _ := writeArtifact(t, "PK-first")
	p2, sum2 := writeArtifact(t, "PK-second")
	h := NewHandler("/packs/current", true)
	_ = h.Load(Artifact{Path: p1})
	if err := h.Load(Artifact{Path: p2, HeaderUUID: "h2"}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	srv := httptest.NewServer(h.InfoHandler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	var info Info
	if err := json.Unmarshal(b, &info); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	if info.SHA256 != sum2 || info.HeaderUUID != "h2" || info.URL != "/packs/current" {
		t.Fatalf("info=%+v", info)
	}
}

func TestHandler_RejectsPost(t *testing.T) {
	h := NewHandler("", true)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, DefaultPath, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("code=%d", rec.Code)
	}
}
