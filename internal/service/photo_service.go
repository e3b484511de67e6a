package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/api/internal/client"
	"github.com/platewise/api/internal/model"
	"github.com/platewise/api/internal/store"
)

// PhotoUploader issues upload URLs for new photos
type PhotoUploader interface {
	CreateUpload(ctx context.Context, ownerID string, req *model.CreateUploadRequest) (*model.CreateUploadResponse, error)
}

// PhotoService registers photos and hands out presigned upload URLs
type PhotoService struct {
	photos  *store.PhotoRepo
	storage client.StorageClient
	ttl     time.Duration
	now     func() time.Time
}

func NewPhotoService(photos *store.PhotoRepo, storage client.StorageClient, ttl time.Duration) *PhotoService {
	return &PhotoService{
		photos:  photos,
		storage: storage,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateUpload records a new photo and returns a time-limited URL to PUT its bytes to
func (s *PhotoService) CreateUpload(ctx context.Context, ownerID string, req *model.CreateUploadRequest) (*model.CreateUploadResponse, error) {
	ext, ok := model.PhotoContentTypes[req.ContentType]
	if !ok {
		return nil, model.NewValidationError("contentType", "unsupported content type")
	}

	now := s.now()
	p := &model.Photo{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		ContentType: req.ContentType,
		CreatedAt:   now,
	}
	p.StorageKey = PhotoKey(ownerID, p.ID, ext)
	if g := strings.TrimSpace(req.GroupID); g != "" {
		p.GroupID = &g
	}

	uploadURL, err := s.storage.PresignUpload(ctx, p.StorageKey, p.ContentType, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}
	if err := s.photos.Create(ctx, p); err != nil {
		return nil, storeError(err)
	}

	return &model.CreateUploadResponse{
		PhotoID:    p.ID.String(),
		StorageKey: p.StorageKey,
		UploadURL:  uploadURL,
		ExpiresAt:  now.Add(s.ttl),
	}, nil
}

// PhotoKey builds the object storage key for a photo
func PhotoKey(ownerID string, photoID uuid.UUID, ext string) string {
	return fmt.Sprintf("photos/%s/%s.%s", url.PathEscape(ownerID), photoID, ext)
}
