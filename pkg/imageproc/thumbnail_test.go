package imageproc

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestThumbnailScalesDown(t *testing.T) {
	out, size, err := NewThumbnailer(100, 0).Thumbnail(bytes.NewReader(pngBytes(t, 400, 200)))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(100, 50), size)
	assert.True(t, bytes.HasPrefix(out, []byte{0xFF, 0xD8}), "expected JPEG output")
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	_, size, err := NewThumbnailer(320, 0).Thumbnail(bytes.NewReader(pngBytes(t, 64, 32)))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(64, 32), size)
}

func TestThumbnailRejectsGarbage(t *testing.T) {
	_, _, err := NewThumbnailer(0, 0).Thumbnail(strings.NewReader("definitely not an image"))
	assert.ErrorIs(t, err, ErrUndecodable)
}

// withDeclaredSize rewrites the IHDR dimensions of a PNG without touching its pixel data.
func withDeclaredSize(t *testing.T, src []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), src...)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestThumbnailRejectsOversizedHeader(t *testing.T) {
	bomb := withDeclaredSize(t, pngBytes(t, 8, 8), 40000, 40000)

	_, _, err := NewThumbnailer(320, 0).Thumbnail(bytes.NewReader(bomb))
	assert.ErrorIs(t, err, ErrTooManyPixels)
}

func TestThumbnailPixelBudgetIsConfigurable(t *testing.T) {
	img := pngBytes(t, 400, 200)

	_, _, err := NewThumbnailer(100, 50_000).Thumbnail(bytes.NewReader(img))
	assert.ErrorIs(t, err, ErrTooManyPixels)

	_, _, err = NewThumbnailer(100, 80_000).Thumbnail(bytes.NewReader(img))
	assert.NoError(t, err)
}
