package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"gorahrib/internal/config"
	"gorahrib/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	defaultUploadLimitMB = 10
	// MaxImageSize bounds both sides of a stored picture, in pixels.
	MaxImageSize    = 2048
	webpQuality     = 75
	WebPContentType = "image/webp"
)

// decoder format name -> canonical mime type
var pictureFormats = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// UploadFile is one file received from a multipart form.
type UploadFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ProcessedImage is an upload re-encoded as WebP and bounded to MaxImageSize.
type ProcessedImage struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

// ImageProcessor validates uploaded pictures and re-encodes them.
type ImageProcessor struct {
	limitBytes int64
	maxSize    int
}

// NewImageProcessor returns a processor using the upload limit from cfg.
func NewImageProcessor(cfg *config.Config) *ImageProcessor {
	mb := defaultUploadLimitMB
	if cfg != nil && cfg.ImageMaxUploadSizeMB > 0 {
		mb = cfg.ImageMaxUploadSizeMB
	}
	return &ImageProcessor{limitBytes: int64(mb) << 20, maxSize: MaxImageSize}
}

// Process checks that in is a real picture of an allowed type and returns it
// as WebP, downscaled to fit MaxImageSize on both sides.
func (p *ImageProcessor) Process(in UploadFile) (*ProcessedImage, error) {
	switch {
	case len(in.Content) == 0:
		return nil, models.NewValidationError("No file uploaded")
	case int64(len(in.Content)) > p.limitBytes:
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", p.limitBytes>>20))
	case !allowedPicture(http.DetectContentType(in.Content)):
		return nil, models.NewValidationError("Invalid image type")
	}

	src, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	actual, ok := pictureFormats[format]
	if !ok {
		return nil, models.NewValidationError("Unsupported image format")
	}
	if claimed := mediaType(in.ContentType); strings.HasPrefix(claimed, "image/") && canonicalMIME(claimed) != actual {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	img := fit(src, p.maxSize)
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: webpQuality}); err != nil {
		return nil, models.NewInternalError(err)
	}

	size := img.Bounds().Size()
	return &ProcessedImage{
		Name:        webpName(in.Filename),
		ContentType: WebPContentType,
		Data:        buf.Bytes(),
		Width:       size.X,
		Height:      size.Y,
	}, nil
}

func webpName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}
	return base + ".webp"
}

// fit scales src down, keeping its aspect ratio, until neither side exceeds limit.
func fit(src image.Image, limit int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || (w <= limit && h <= limit) {
		return src
	}

	scale := min(float64(limit)/float64(w), float64(limit)/float64(h))
	dw := max(1, int(float64(w)*scale))
	dh := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = contentType
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func canonicalMIME(mt string) string {
	if mt == "image/jpg" {
		return "image/jpeg"
	}
	return mt
}

func allowedPicture(contentType string) bool {
	mt := canonicalMIME(mediaType(contentType))
	for _, known := range pictureFormats {
		if mt == known {
			return true
		}
	}
	return false
}
