package ioutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	"image/png"

	_ "golang.org/x/image/bmp"  // BMP decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// DefaultMaxPixels caps the declared width*height of an image accepted for
// a thumbnail.
const DefaultMaxPixels = 40_000_000

var (
	// ErrEmptyImage is returned for a payload with no bytes or no pixels.
	ErrEmptyImage = errors.New("empty image")

	// ErrTooManyPixels is returned when an image declares more pixels than
	// the service accepts. Nothing is decoded in that case.
	ErrTooManyPixels = errors.New("image dimensions too large")
)

// Thumb is an encoded preview produced by ImageService.Thumbnail.
type Thumb struct {
	// Data is the PNG-encoded thumbnail.
	Data []byte

	// MimeType is the type detected from the source payload, e.g. "image/webp".
	MimeType string

	Width  int
	Height int
}

// ImageService provides image processing operations for previews.
//
// Example usage:
//
//	svc := NewImageService(DefaultMaxPixels)
//
//	thumb, err := svc.Thumbnail(ctx, imageData, 150)
//	if err != nil {
//	    // not an image we can decode
//	}
type ImageService struct {
	maxPixels int64
}

// NewImageService creates a new ImageService that refuses images declaring
// more than maxPixels pixels. maxPixels <= 0 disables the check.
func NewImageService(maxPixels int64) *ImageService {
	return &ImageService{maxPixels: maxPixels}
}

// FitWithin returns the dimensions of a width x height image scaled so its
// longest side is at most maxSide, preserving aspect ratio. Images already
// small enough are returned unchanged; the result is never below 1x1.
//
// Example:
//
//	FitWithin(1500, 1000, 150) // 150, 100
//	FitWithin(80, 60, 150)     // 80, 60
func FitWithin(width, height, maxSide int) (int, int) {
	if maxSide <= 0 || (width <= maxSide && height <= maxSide) {
		return width, height
	}
	if width >= height {
		height = int(float64(height) * float64(maxSide) / float64(width))
		width = maxSide
	} else {
		width = int(float64(width) * float64(maxSide) / float64(height))
		height = maxSide
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}

// Thumbnail decodes data and scales it so the longest side is at most
// maxSide pixels, keeping the aspect ratio. Images are never enlarged.
//
// Supported inputs are JPEG, PNG, GIF (first frame), WebP, BMP and TIFF.
// The thumbnail is always PNG-encoded so transparency survives; MimeType
// reports the source format.
//
// The header is checked before decoding: an image declaring more pixels
// than the service's limit fails with ErrTooManyPixels.
//
// The Catmull-Rom algorithm is used for high-quality resizing.
//
// Example:
//
//	thumb, err := svc.Thumbnail(ctx, data, 150)
//	// A 1500x1000 JPEG becomes a 150x100 PNG with MimeType "image/jpeg"
func (s *ImageService) Thumbnail(ctx context.Context, data []byte, maxSide int) (*Thumb, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrEmptyImage
	}
	if s.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > s.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooManyPixels, cfg.Width, cfg.Height, s.maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	width, height := FitWithin(bounds.Dx(), bounds.Dy(), maxSide)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}

	return &Thumb{
		Data:     buf.Bytes(),
		MimeType: "image/" + format,
		Width:    width,
		Height:   height,
	}, nil
}
