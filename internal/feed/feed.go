// Package feed resolves the base URL under which delta artifacts and
// the platform manifest are published, per the configured provider.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/helixdesk/updater/internal/config"
	"github.com/helixdesk/updater/internal/logging"
	"github.com/helixdesk/updater/internal/release"
)

var log = logging.L("feed")

// Resolver maps an update configuration to the feed base URL.
type Resolver struct {
	// Client is used for hosted-index latest-tag lookups. Defaults to
	// http.DefaultClient when nil.
	Client *http.Client

	// IndexBaseURL overrides the hosted index API endpoint, for tests.
	IndexBaseURL string

	// DownloadBaseURL overrides the hosted download host. Defaults to
	// https://github.com.
	DownloadBaseURL string

	// Custom supplies the base URL for the "custom" provider.
	Custom func(ctx context.Context) (string, error)
}

// Resolve returns the feed base URL for cfg. Hosted-index resolution
// performs a latest-tag lookup, since hosted release downloads are
// versioned per tag.
func (r *Resolver) Resolve(ctx context.Context, cfg config.UpdateConfig) (string, error) {
	switch cfg.Provider {
	case config.ProviderHostedIndex:
		return r.resolveHosted(ctx, cfg)
	case "", config.ProviderGeneric:
		if cfg.URL == "" {
			return "", errors.New("generic provider requires a feed url")
		}
		return strings.TrimRight(cfg.URL, "/"), nil
	case config.ProviderBucket:
		if cfg.Bucket == "" || cfg.Region == "" {
			return "", errors.New("bucket provider requires bucket and region")
		}
		base := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		if cfg.Prefix != "" {
			base += "/" + strings.Trim(cfg.Prefix, "/")
		}
		return base, nil
	case config.ProviderCustom:
		if r.Custom == nil {
			return "", errors.New("custom provider requires a resolver func")
		}
		return r.Custom(ctx)
	default:
		return "", fmt.Errorf("unknown update provider %q", cfg.Provider)
	}
}

func (r *Resolver) resolveHosted(ctx context.Context, cfg config.UpdateConfig) (string, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return "", errors.New("hosted-index provider requires owner and repo")
	}

	opts := []release.HostedOption{}
	if r.Client != nil {
		opts = append(opts, release.WithHTTPClient(r.Client))
	}
	if r.IndexBaseURL != "" {
		opts = append(opts, release.WithBaseURL(r.IndexBaseURL))
	}

	idx := release.NewHostedIndex(cfg.Owner, cfg.Repo, opts...)
	version, err := idx.LatestVersion(ctx)
	if err != nil {
		return "", err
	}

	host := r.DownloadBaseURL
	if host == "" {
		host = "https://github.com"
	}
	base := fmt.Sprintf("%s/%s/%s/releases/download/v%s",
		strings.TrimRight(host, "/"), cfg.Owner, cfg.Repo, version)
	log.Debug("resolved hosted feed", "version", version, "base", base)
	return base, nil
}
