package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	storage "github.com/supabase-community/storage-go"

	"github.com/platewise/api/internal/config"
)

// SupabaseClient implements StorageClient on Supabase Storage
type SupabaseClient struct {
	client     *storage.Client
	bucket     string
	storageURL string
}

// NewSupabaseClient creates a storage client for one bucket
func NewSupabaseClient(cfg *config.SupabaseConfig) (*SupabaseClient, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, fmt.Errorf("supabase configuration incomplete")
	}

	storageURL := strings.TrimSuffix(cfg.URL, "/") + "/storage/v1"
	return &SupabaseClient{
		client:     storage.NewClient(storageURL, cfg.ServiceKey, nil),
		bucket:     cfg.Bucket,
		storageURL: storageURL,
	}, nil
}

// PresignUpload returns a signed upload URL. Supabase fixes its lifetime
// server side, so expiry is not used.
func (c *SupabaseClient) PresignUpload(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	resp, err := c.client.CreateSignedUploadUrl(c.bucket, key)
	if err != nil {
		return "", fmt.Errorf("failed to sign upload: %w", err)
	}
	return c.absolute(resp.Url), nil
}

func (c *SupabaseClient) PresignDownload(_ context.Context, key string, expiry time.Duration) (string, error) {
	resp, err := c.client.CreateSignedUrl(c.bucket, key, int(expiry.Seconds()))
	if err != nil {
		return "", fmt.Errorf("failed to sign download: %w", err)
	}
	return c.absolute(resp.SignedURL), nil
}

func (c *SupabaseClient) Download(_ context.Context, key string) ([]byte, error) {
	data, err := c.client.DownloadFile(c.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("photo %s exceeds %d bytes", key, maxPhotoBytes)
	}
	return data, nil
}

func (c *SupabaseClient) Delete(_ context.Context, key string) error {
	if _, err := c.client.RemoveFile(c.bucket, []string{key}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// signed URLs come back relative to the storage API root
func (c *SupabaseClient) absolute(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return c.storageURL + "/" + strings.TrimPrefix(u, "/")
}
