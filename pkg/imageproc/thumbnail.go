package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

var (
	// ErrUndecodable is returned when the upload is not a decodable image.
	ErrUndecodable = errors.New("image cannot be decoded")
	// ErrTooManyPixels is returned when the declared dimensions exceed the pixel budget.
	ErrTooManyPixels = errors.New("image dimensions exceed the allowed pixel count")
)

const (
	defaultWidth     = 320
	defaultMaxPixels = 40_000_000
)

// Thumbnailer decodes uploaded images and produces JPEG previews.
type Thumbnailer struct {
	width     int
	maxPixels int64
	quality   int
}

// NewThumbnailer builds a thumbnailer with the target width and the largest
// width*height it will decode.
func NewThumbnailer(width int, maxPixels int64) *Thumbnailer {
	if width <= 0 {
		width = defaultWidth
	}
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}
	return &Thumbnailer{width: width, maxPixels: maxPixels, quality: 80}
}

// Thumbnail decodes r and returns a JPEG scaled down to the configured width.
// Images narrower than the target are re-encoded at their own size. The header
// is checked against the pixel budget before any pixel data is allocated.
func (t *Thumbnailer) Thumbnail(r io.Reader) ([]byte, image.Point, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > t.maxPixels {
		return nil, image.Point{}, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if img.Bounds().Dx() > t.width {
		img = imaging.Resize(img, t.width, 0, imaging.Lanczos)
	}

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(t.quality)); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), img.Bounds().Size(), nil
}
