package service

import (
	"bytes"
	"image"
	"testing"

	"gorahrib/internal/config"
	"gorahrib/internal/models"
	"gorahrib/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageProcessorReencodesToWebP(t *testing.T) {
	p := NewImageProcessor(&config.Config{ImageMaxUploadSizeMB: 1})

	out, err := p.Process(UploadFile{
		Filename:    "vrh.png",
		ContentType: "image/png",
		Content:     testutil.TinyPNG(t, 64, 32),
	})
	require.NoError(t, err)

	assert.Equal(t, "vrh.webp", out.Name)
	assert.Equal(t, WebPContentType, out.ContentType)
	assert.Equal(t, 64, out.Width)
	assert.Equal(t, 32, out.Height)

	_, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "webp", format)
}

func TestImageProcessorBoundsLargeImages(t *testing.T) {
	p := NewImageProcessor(nil)
	p.maxSize = 100

	out, err := p.Process(UploadFile{Filename: "wide.png", Content: testutil.TinyPNG(t, 400, 200)})
	require.NoError(t, err)
	assert.Equal(t, 100, out.Width)
	assert.Equal(t, 50, out.Height)
}

func TestImageProcessorRejectsInvalidUploads(t *testing.T) {
	p := NewImageProcessor(&config.Config{ImageMaxUploadSizeMB: 1})
	png := testutil.TinyPNG(t, 8, 8)

	tests := []struct {
		name string
		in   UploadFile
		msg  string
	}{
		{"empty", UploadFile{Filename: "a.png"}, "No file uploaded"},
		{"not an image", UploadFile{Filename: "a.txt", Content: []byte("hello world")}, "Invalid image type"},
		{"too large", UploadFile{Filename: "a.png", Content: make([]byte, 2*1024*1024)}, "File too large (max 1MB)"},
		{"type mismatch", UploadFile{Filename: "a.jpg", ContentType: "image/jpeg", Content: png}, "Image content type mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Process(tt.in)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.CodeValidation))
			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.msg, appErr.Message)
		})
	}
}

func TestWebpName(t *testing.T) {
	assert.Equal(t, "photo.webp", webpName("photo.JPG"))
	assert.Equal(t, "image.webp", webpName(""))
	assert.Equal(t, "x.webp", webpName("../../x.png"))
}
