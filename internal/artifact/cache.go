// Package artifact caches downloaded full-installer artifacts and their
// extracted trees under a local root. Presence on disk is the sole
// cache-validity test: re-runs of the pipeline skip any download or
// extraction whose expected output already exists.
package artifact

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/helixdesk/updater/internal/download"
	"github.com/helixdesk/updater/internal/logging"
	"github.com/helixdesk/updater/internal/release"
	"github.com/helixdesk/updater/internal/tools"
)

var log = logging.L("artifact")

// CachedArtifact is a release artifact materialized on local disk.
type CachedArtifact struct {
	Ref          release.Ref
	LocalPath    string
	ExtractedDir string
}

// Cache manages the on-disk layout:
//
//	<root>/downloads/<fileName>
//	<root>/extracted/<version>/...
//
// One installed copy of the pipeline owns the root exclusively;
// concurrent builds against the same root are not supported.
type Cache struct {
	Root       string
	Downloader *download.Downloader
	Extractor  tools.Extractor

	// PayloadRel is the path, relative to an extraction root, whose
	// existence marks the tree as fully extracted: the main executable
	// on Windows, the app bundle directory on macOS.
	PayloadRel string
}

// Ensure downloads the artifact unless its cache file already exists.
// The cache key is the file name derived from the artifact URL.
func (c *Cache) Ensure(ctx context.Context, ref release.Ref) (*CachedArtifact, error) {
	name, err := fileNameFromURL(ref.URL)
	if err != nil {
		return nil, err
	}

	local := filepath.Join(c.Root, "downloads", name)
	if _, err := os.Stat(local); err == nil {
		log.Debug("artifact cache hit", "version", ref.Version, "path", local)
		return &CachedArtifact{Ref: ref, LocalPath: local}, nil
	}

	log.Info("downloading artifact", "version", ref.Version, "url", ref.URL)
	if err := c.Downloader.Fetch(ctx, ref.URL, local, nil); err != nil {
		return nil, fmt.Errorf("download artifact %s: %w", ref.Version, err)
	}

	return &CachedArtifact{Ref: ref, LocalPath: local}, nil
}

// EnsureExtracted unpacks the artifact into its per-version directory
// unless the payload marker is already present there.
func (c *Cache) EnsureExtracted(ctx context.Context, art *CachedArtifact) (string, error) {
	dir := filepath.Join(c.Root, "extracted", art.Ref.Version)

	if c.payloadPresent(dir) {
		log.Debug("extraction cache hit", "version", art.Ref.Version, "dir", dir)
		art.ExtractedDir = dir
		return dir, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create extraction dir: %w", err)
	}

	log.Info("extracting artifact", "version", art.Ref.Version, "dir", dir)
	if err := c.Extractor.Extract(ctx, art.LocalPath, dir); err != nil {
		return "", fmt.Errorf("extract artifact %s: %w", art.Ref.Version, err)
	}

	art.ExtractedDir = dir
	return dir, nil
}

// DiffRoot returns the directory handed to the diff tool. On trees with
// bundle semantics the payload bundle itself is the diff root, not the
// extraction root.
func (c *Cache) DiffRoot(extractedDir string) string {
	if filepath.Ext(c.PayloadRel) == ".app" {
		return filepath.Join(extractedDir, c.PayloadRel)
	}
	return extractedDir
}

func (c *Cache) payloadPresent(dir string) bool {
	if c.PayloadRel == "" {
		// No marker configured; only a previous full extraction counts.
		_, err := os.Stat(dir)
		return err == nil
	}
	_, err := os.Stat(filepath.Join(dir, c.PayloadRel))
	return err == nil
}

func fileNameFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("artifact url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("artifact url %s has no file name", raw)
	}
	return name, nil
}
