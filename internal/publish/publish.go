// Package publish uploads built delta artifacts and manifests to the
// release host. Each provider implements the same single-file Upload
// contract; the factory selects one from configuration.
package publish

import (
	"context"
	"fmt"
	"path"

	"github.com/helixdesk/updater/internal/config"
	"github.com/helixdesk/updater/internal/logging"
)

var log = logging.L("publish")

// Provider uploads a local file under a name relative to the release
// root.
type Provider interface {
	Upload(ctx context.Context, localPath, remoteName string) error
}

// New builds the provider selected by cfg. A "none" or empty provider
// returns nil with no error: publishing is disabled.
func New(ctx context.Context, cfg config.PublishConfig) (Provider, error) {
	switch cfg.Provider {
	case "", config.PublishNone:
		return nil, nil
	case config.PublishLocal:
		return NewLocalProvider(cfg.LocalDir)
	case config.PublishS3:
		return NewS3Provider(ctx, cfg)
	case config.PublishGCS:
		return NewGCSProvider(ctx, cfg)
	case config.PublishAzure:
		return NewAzureProvider(cfg)
	case config.PublishB2:
		return NewB2Provider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown publish provider %q", cfg.Provider)
	}
}

// objectKey prefixes the remote name with the configured key prefix.
func objectKey(prefix, remoteName string) string {
	if prefix == "" {
		return remoteName
	}
	return path.Join(prefix, remoteName)
}
