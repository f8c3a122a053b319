// Package transcode downsizes images before upload to cut latency. A failed
// transcode is recoverable: callers upload the original bytes instead.
package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	DefaultMaxWidth = 1200
	DefaultQuality  = 0.7
)

// Transcode re-encodes src as JPEG, scaling it down to at most maxWidth
// pixels wide. Images narrower than maxWidth are never upscaled; the aspect
// ratio is preserved with the height rounded to the nearest pixel. Quality is
// in (0, 1].
func Transcode(src []byte, maxWidth int, quality float64) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("image has empty bounds")
	}

	width := maxWidth
	if srcW < width {
		width = srcW
	}
	ratio := float64(srcW) / float64(srcH)
	height := int(math.Round(float64(width) / ratio))
	if height < 1 {
		height = 1
	}

	scaled := img
	if width != srcW || height != srcH {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		scaled = dst
	}

	var out bytes.Buffer
	opts := &jpeg.Options{Quality: jpegQuality(quality)}
	if err := jpeg.Encode(&out, scaled, opts); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}

	return out.Bytes(), nil
}

func jpegQuality(quality float64) int {
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return q
}
