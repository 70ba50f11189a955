package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
)

// ObjectStoreStub is an in-memory storage.ObjectStore.
type ObjectStoreStub struct {
	mu        sync.Mutex
	Uploaded  []string
	Deleted   []string
	FailAfter int
	n         int
}

// NewObjectStoreStub returns a stub that never fails.
func NewObjectStoreStub() *ObjectStoreStub {
	return &ObjectStoreStub{FailAfter: -1}
}

// Upload records the upload and returns a fake URL. When FailAfter is
// non-negative, uploads beyond that many fail.
func (s *ObjectStoreStub) Upload(_ context.Context, _ []byte, name, folder, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAfter >= 0 && len(s.Uploaded) >= s.FailAfter {
		return "", errors.New("upload failed")
	}
	s.n++
	url := fmt.Sprintf("https://cdn.test/%s/%d-%s", folder, s.n, name)
	s.Uploaded = append(s.Uploaded, url)
	return url, nil
}

// DeleteFiles records the deleted URLs.
func (s *ObjectStoreStub) DeleteFiles(_ context.Context, urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, urls...)
}

// DeletedURLs returns a copy of every URL passed to DeleteFiles.
func (s *ObjectStoreStub) DeletedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Deleted...)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, G: 30, B: 30, A: 255})
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
