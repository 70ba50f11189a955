package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gorahrib/internal/middleware"
)

// LocalStore keeps files on disk. It is the development fallback for S3.
type LocalStore struct {
	dir       string
	publicURL string
}

// NewLocalStore returns a store writing below dir and serving under publicURL.
func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage: upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return &LocalStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir returns the directory served as static files.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Upload(_ context.Context, data []byte, name, folder, contentType string) (string, error) {
	key := objectKey(folder, name, contentType)
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("local storage: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("local storage: %w", err)
	}
	return s.publicURL + "/" + key, nil
}

func (s *LocalStore) DeleteFiles(ctx context.Context, urls []string) {
	for _, url := range urls {
		key, ok := keyFromURL(s.publicURL, url)
		if !ok {
			middleware.Logger.WarnContext(ctx, "skipping foreign picture URL", slog.String("url", url))
			continue
		}
		full := filepath.Join(s.dir, filepath.FromSlash(path.Clean(key)))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			middleware.Logger.WarnContext(ctx, "failed to delete picture",
				slog.String("url", url), slog.String("error", err.Error()))
		}
	}
}
