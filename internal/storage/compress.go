package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the webp decoder with image.Decode
)

// Compressor re-encodes images as JPEG, auto-oriented and bounded to
// MaxDimension on the longer side.
type Compressor struct {
	MaxDimension int
	Quality      int
}

// Compress never upscales. Transparent areas are flattened onto white
// since JPEG has no alpha channel.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() > c.MaxDimension || b.Dy() > c.MaxDimension {
		img = imaging.Fit(img, c.MaxDimension, c.MaxDimension, imaging.Lanczos)
	}
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	flat := imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(c.Quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
