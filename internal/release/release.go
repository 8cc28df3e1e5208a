// Package release models the published-release index consumed by the
// delta build pipeline: listing prior releases, and selecting the window
// of releases worth diffing against the newest one.
package release

import "context"

// Asset is a single downloadable artifact attached to a release.
type Asset struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
	Size int64  `json:"size" yaml:"size"`
}

// Release is one published version with its artifacts.
type Release struct {
	Version string  `json:"version" yaml:"version"`
	Assets  []Asset `json:"assets" yaml:"assets"`
}

// Ref points at the one full-installer asset chosen for a release.
type Ref struct {
	Version string
	URL     string
	Name    string
}

// Index lists known releases in reverse-chronological order (newest
// first). Implementations are external collaborators; callers treat an
// unreachable index as "no updates possible", not as a build failure.
type Index interface {
	ListReleases(ctx context.Context) ([]Release, error)
}
