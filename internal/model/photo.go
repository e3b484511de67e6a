package model

import (
	"time"

	"github.com/google/uuid"
)

// Photo is one uploaded image owned by a user
type Photo struct {
	ID          uuid.UUID
	OwnerID     string
	StorageKey  string
	ContentType string
	GroupID     *string
	CreatedAt   time.Time
}

// PhotoContentTypes maps accepted upload types to storage key extensions
var PhotoContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
}

// CreateUploadRequest represents the request for a photo upload URL
type CreateUploadRequest struct {
	ContentType string `json:"contentType" validate:"required,oneof=image/jpeg image/png image/webp image/heic"`
	GroupID     string `json:"groupId" validate:"omitempty,max=64"`
}

// CreateUploadResponse carries the presigned URL for a new photo
type CreateUploadResponse struct {
	PhotoID    string    `json:"photoId"`
	StorageKey string    `json:"storageKey"`
	UploadURL  string    `json:"uploadUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
