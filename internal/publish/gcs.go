package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/helixdesk/updater/internal/config"
)

// GCSProvider uploads to a Google Cloud Storage bucket.
type GCSProvider struct {
	bucket string
	prefix string
	client *storage.Client
}

// NewGCSProvider authenticates from the configured service account file
// when one is set, and from application default credentials otherwise.
func NewGCSProvider(ctx context.Context, cfg config.PublishConfig) (*GCSProvider, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSProvider{bucket: cfg.Bucket, prefix: cfg.Prefix, client: client}, nil
}

func (p *GCSProvider) Upload(ctx context.Context, localPath, remoteName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := objectKey(p.prefix, remoteName)
	w := p.client.Bucket(p.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("upload gs://%s/%s: %w", p.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload gs://%s/%s: %w", p.bucket, key, err)
	}

	log.Info("uploaded to gcs", "bucket", p.bucket, "key", key)
	return nil
}

// Close releases the underlying client connection.
func (p *GCSProvider) Close() error {
	return p.client.Close()
}
