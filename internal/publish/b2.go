package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Backblaze/blazer/b2"

	"github.com/helixdesk/updater/internal/config"
)

// B2Provider uploads to a Backblaze B2 bucket.
type B2Provider struct {
	bucket *b2.Bucket
	prefix string
}

func NewB2Provider(ctx context.Context, cfg config.PublishConfig) (*B2Provider, error) {
	if cfg.AccountID == "" || cfg.ApplicationKey == "" {
		return nil, errors.New("b2 account id and application key are required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("b2 bucket is required")
	}

	client, err := b2.NewClient(ctx, cfg.AccountID, cfg.ApplicationKey)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("open b2 bucket %s: %w", cfg.Bucket, err)
	}

	return &B2Provider{bucket: bucket, prefix: cfg.Prefix}, nil
}

func (p *B2Provider) Upload(ctx context.Context, localPath, remoteName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := objectKey(p.prefix, remoteName)
	w := p.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("upload b2 %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload b2 %s: %w", key, err)
	}

	log.Info("uploaded to b2", "key", key)
	return nil
}
