package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/helixdesk/updater/internal/httputil"
)

const (
	hostedPerPage = 30

	// maxIndexResponseBytes caps JSON API responses (10 MB).
	maxIndexResponseBytes = 10 << 20
)

// HostedIndex queries a GitHub-style hosted releases API.
type HostedIndex struct {
	client    *http.Client
	baseURL   string
	owner     string
	repo      string
	token     string
	userAgent string
	retry     httputil.RetryConfig
}

// hostedRelease is the wire format of one release in the hosted index.
type hostedRelease struct {
	TagName    string        `json:"tag_name"`
	Draft      bool          `json:"draft"`
	Prerelease bool          `json:"prerelease"`
	Assets     []hostedAsset `json:"assets"`
}

type hostedAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// HostedOption configures a HostedIndex.
type HostedOption func(*HostedIndex)

// WithHTTPClient sets a custom HTTP client, useful for tests.
func WithHTTPClient(c *http.Client) HostedOption {
	return func(h *HostedIndex) { h.client = c }
}

// WithBaseURL overrides the API base URL, primarily for test servers.
func WithBaseURL(base string) HostedOption {
	return func(h *HostedIndex) { h.baseURL = strings.TrimRight(base, "/") }
}

// WithToken sets an access token for authenticated requests.
func WithToken(token string) HostedOption {
	return func(h *HostedIndex) { h.token = token }
}

// NewHostedIndex creates a client for the given owner/repo.
func NewHostedIndex(owner, repo string, opts ...HostedOption) *HostedIndex {
	h := &HostedIndex{
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   "https://api.github.com",
		owner:     owner,
		repo:      repo,
		userAgent: "helix-updater",
		retry:     httputil.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ListReleases fetches published stable releases, newest first. Tag
// ordering uses semantic version comparison; tags without valid semver
// sort last. Drafts and prereleases are dropped.
func (h *HostedIndex) ListReleases(ctx context.Context) ([]Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", h.baseURL, h.owner, h.repo, hostedPerPage)

	resp, err := httputil.Get(ctx, h.client, url, h.headers(), h.retry)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list releases: unexpected status %d", resp.StatusCode)
	}

	var raw []hostedRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIndexResponseBytes)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("list releases: decode: %w", err)
	}

	var releases []Release
	for _, hr := range raw {
		if hr.Draft || hr.Prerelease {
			continue
		}
		releases = append(releases, toRelease(hr))
	}

	sortNewestFirst(releases)
	return releases, nil
}

// LatestVersion returns the newest stable version tag, without the "v"
// prefix. Used by the hosted-index feed provider for latest-tag lookup.
func (h *HostedIndex) LatestVersion(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", h.baseURL, h.owner, h.repo)

	resp, err := httputil.Get(ctx, h.client, url, h.headers(), h.retry)
	if err != nil {
		return "", fmt.Errorf("latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("latest release: unexpected status %d", resp.StatusCode)
	}

	var hr hostedRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIndexResponseBytes)).Decode(&hr); err != nil {
		return "", fmt.Errorf("latest release: decode: %w", err)
	}
	if hr.TagName == "" {
		return "", fmt.Errorf("latest release: empty tag")
	}

	return strings.TrimPrefix(hr.TagName, "v"), nil
}

func (h *HostedIndex) headers() http.Header {
	hdr := http.Header{}
	hdr.Set("Accept", "application/vnd.github+json")
	hdr.Set("User-Agent", h.userAgent)
	if h.token != "" {
		hdr.Set("Authorization", "Bearer "+h.token)
	}
	return hdr
}

func toRelease(hr hostedRelease) Release {
	rel := Release{Version: strings.TrimPrefix(hr.TagName, "v")}
	for _, a := range hr.Assets {
		rel.Assets = append(rel.Assets, Asset{
			Name: a.Name,
			URL:  a.BrowserDownloadURL,
			Size: a.Size,
		})
	}
	return rel
}

func sortNewestFirst(releases []Release) {
	// semver.Compare needs the "v" prefix back. Invalid versions sort last.
	slices.SortStableFunc(releases, func(a, b Release) int {
		return semver.Compare("v"+b.Version, "v"+a.Version)
	})
}
