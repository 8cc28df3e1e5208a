package artifact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/helixdesk/updater/internal/download"
	"github.com/helixdesk/updater/internal/release"
)

// fakeExtractor simulates extraction by dropping the payload marker.
type fakeExtractor struct {
	calls   atomic.Int32
	payload string
}

func (f *fakeExtractor) Extract(ctx context.Context, archive, destDir string) error {
	f.calls.Add(1)
	return os.WriteFile(filepath.Join(destDir, f.payload), []byte("exe"), 0755)
}

func newTestCache(t *testing.T, serverURL string, client *http.Client) (*Cache, *fakeExtractor) {
	t.Helper()
	ex := &fakeExtractor{payload: "HelixDesk.exe"}
	return &Cache{
		Root:       t.TempDir(),
		Downloader: download.NewWithClient(client),
		Extractor:  ex,
		PayloadRel: "HelixDesk.exe",
	}, ex
}

func TestEnsureDownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("installer bytes"))
	}))
	defer server.Close()

	cache, _ := newTestCache(t, server.URL, server.Client())
	ref := release.Ref{Version: "1.1.0", URL: server.URL + "/HelixDesk-1.1.0.exe", Name: "HelixDesk-1.1.0.exe"}

	first, err := cache.Ensure(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Ensure(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}

	if hits.Load() != 1 {
		t.Fatalf("server hits = %d, want 1 (second call is a cache hit)", hits.Load())
	}
	if first.LocalPath != second.LocalPath {
		t.Fatalf("paths differ: %s vs %s", first.LocalPath, second.LocalPath)
	}
	if filepath.Base(first.LocalPath) != "HelixDesk-1.1.0.exe" {
		t.Fatalf("cache key = %s, want file name from URL", filepath.Base(first.LocalPath))
	}
}

func TestEnsureExtractedIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("installer bytes"))
	}))
	defer server.Close()

	cache, ex := newTestCache(t, server.URL, server.Client())
	ref := release.Ref{Version: "1.1.0", URL: server.URL + "/HelixDesk-1.1.0.exe"}

	art, err := cache.Ensure(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}

	dir1, err := cache.EnsureExtracted(context.Background(), art)
	if err != nil {
		t.Fatal(err)
	}
	dir2, err := cache.EnsureExtracted(context.Background(), art)
	if err != nil {
		t.Fatal(err)
	}

	if ex.calls.Load() != 1 {
		t.Fatalf("extractor calls = %d, want 1", ex.calls.Load())
	}
	if dir1 != dir2 {
		t.Fatalf("dirs differ: %s vs %s", dir1, dir2)
	}
}

func TestEnsureExtractedReExtractsWithoutPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("installer bytes"))
	}))
	defer server.Close()

	cache, ex := newTestCache(t, server.URL, server.Client())
	ref := release.Ref{Version: "1.1.0", URL: server.URL + "/HelixDesk-1.1.0.exe"}

	art, _ := cache.Ensure(context.Background(), ref)
	dir, err := cache.EnsureExtracted(context.Background(), art)
	if err != nil {
		t.Fatal(err)
	}

	// A directory without the payload marker is a partial extraction.
	os.Remove(filepath.Join(dir, "HelixDesk.exe"))

	if _, err := cache.EnsureExtracted(context.Background(), art); err != nil {
		t.Fatal(err)
	}
	if ex.calls.Load() != 2 {
		t.Fatalf("extractor calls = %d, want re-extraction", ex.calls.Load())
	}
}

func TestDiffRootBundle(t *testing.T) {
	c := &Cache{PayloadRel: "HelixDesk.app"}
	if got := c.DiffRoot("/cache/extracted/1.0.0"); got != "/cache/extracted/1.0.0/HelixDesk.app" {
		t.Fatalf("DiffRoot = %s, want inner bundle", got)
	}

	c = &Cache{PayloadRel: "HelixDesk.exe"}
	if got := c.DiffRoot("/cache/extracted/1.0.0"); got != "/cache/extracted/1.0.0" {
		t.Fatalf("DiffRoot = %s, want extraction root", got)
	}
}

func TestFileNameFromURL(t *testing.T) {
	name, err := fileNameFromURL("https://dl.example.com/releases/v1.1.0/HelixDesk-1.1.0.exe?token=x")
	if err != nil {
		t.Fatal(err)
	}
	if name != "HelixDesk-1.1.0.exe" {
		t.Fatalf("name = %s", name)
	}

	if _, err := fileNameFromURL("https://dl.example.com/"); err == nil {
		t.Fatal("expected error for URL without file name")
	}
}
