package transcode

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()

	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestTranscode_DownscalesWideImage(t *testing.T) {
	src := encodePNG(t, 2400, 1600)

	out, err := Transcode(src, DefaultMaxWidth, DefaultQuality)
	require.NoError(t, err)

	w, h := decodeSize(t, out)
	assert.Equal(t, 1200, w)
	assert.Equal(t, 800, h)
}

func TestTranscode_NeverUpscales(t *testing.T) {
	src := encodePNG(t, 800, 600)

	out, err := Transcode(src, DefaultMaxWidth, DefaultQuality)
	require.NoError(t, err)

	w, h := decodeSize(t, out)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestTranscode_RoundsHeightPreservingAspect(t *testing.T) {
	// 1333x1000 scaled to 1200 wide gives 900.2..., which rounds to 900.
	src := encodePNG(t, 1333, 1000)

	out, err := Transcode(src, DefaultMaxWidth, DefaultQuality)
	require.NoError(t, err)

	w, h := decodeSize(t, out)
	assert.Equal(t, 1200, w)
	assert.Equal(t, 900, h)
}

func TestTranscode_WidthIsMinOfMaxAndSource(t *testing.T) {
	for _, srcWidth := range []int{100, 1199, 1200, 1201, 3000} {
		src := encodePNG(t, srcWidth, 500)

		out, err := Transcode(src, DefaultMaxWidth, DefaultQuality)
		require.NoError(t, err)

		w, _ := decodeSize(t, out)
		want := srcWidth
		if want > DefaultMaxWidth {
			want = DefaultMaxWidth
		}
		assert.Equal(t, want, w, "source width %d", srcWidth)
	}
}

func TestTranscode_UndecodableInputFails(t *testing.T) {
	_, err := Transcode([]byte("definitely not an image"), DefaultMaxWidth, DefaultQuality)
	assert.Error(t, err)
}

func TestJPEGQualityClamped(t *testing.T) {
	assert.Equal(t, 70, jpegQuality(0.7))
	assert.Equal(t, 1, jpegQuality(0))
	assert.Equal(t, 100, jpegQuality(1.5))
}
