// Package storage uploads and deletes user pictures in object storage.
package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"gorahrib/internal/config"

	"github.com/google/uuid"
)

// Folders used by the application.
const (
	FolderPeakPictures    = "peak-pictures"
	FolderForumPictures   = "forum-pictures"
	FolderProfilePictures = "profile-pictures"
)

// ObjectStore stores pictures and returns their public URL. DeleteFiles is
// best-effort: failures are logged, never returned.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, name, folder, contentType string) (string, error)
	DeleteFiles(ctx context.Context, urls []string)
}

// New builds the store selected by STORAGE_BACKEND.
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		return NewS3Store(ctx, S3Options{
			Endpoint:     cfg.S3Endpoint,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
			PublicURL:    cfg.StoragePublicURL,
		})
	case "", config.StorageLocal:
		return NewLocalStore(cfg.ImageUploadDir, cfg.StoragePublicURL)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

// objectKey returns folder/<uuid><ext> so uploads never collide or carry
// user-controlled path segments.
func objectKey(folder, name, contentType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch contentType {
	case "image/webp":
		ext = ".webp"
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	}
	folder = strings.Trim(path.Clean("/"+folder), "/")
	return path.Join(folder, uuid.NewString()+ext)
}

// keyFromURL strips base from url. ok is false for URLs the store did not issue.
func keyFromURL(base, url string) (string, bool) {
	base = strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, base) {
		return "", false
	}
	key := strings.TrimPrefix(url, base)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
