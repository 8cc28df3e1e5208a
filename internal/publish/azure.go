package publish

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/helixdesk/updater/internal/config"
)

// AzureProvider uploads to an Azure Blob Storage container. The
// configured bucket name is used as the container name.
type AzureProvider struct {
	container string
	prefix    string
	client    *azblob.Client
}

func NewAzureProvider(cfg config.PublishConfig) (*AzureProvider, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, errors.New("azure account name and key are required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("azure container is required")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure client: %w", err)
	}

	return &AzureProvider{container: cfg.Bucket, prefix: cfg.Prefix, client: client}, nil
}

func (p *AzureProvider) Upload(ctx context.Context, localPath, remoteName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := objectKey(p.prefix, remoteName)
	if _, err := p.client.UploadFile(ctx, p.container, key, f, nil); err != nil {
		return fmt.Errorf("upload azure %s/%s: %w", p.container, key, err)
	}

	log.Info("uploaded to azure", "container", p.container, "blob", key)
	return nil
}
