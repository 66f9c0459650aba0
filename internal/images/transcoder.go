package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Encoded is the output of one transcode: final bytes plus the extension and
// pixel dimensions to persist.
type Encoded struct {
	Bytes  []byte
	Ext    string
	Width  int
	Height int
}

// Transcoder converts raw photo bytes into the stored representation:
// JPEG at a fixed quality, downscaled to a maximum width. WebP sources are
// kept byte-identical when keepWebp is set, since re-encoding them would
// only grow the file.
type Transcoder struct {
	maxWidth int
	quality  int
	keepWebp bool
}

// NewTranscoder creates a transcoder with the given limits.
func NewTranscoder(maxWidth, quality int, keepWebp bool) *Transcoder {
	return &Transcoder{maxWidth: maxWidth, quality: quality, keepWebp: keepWebp}
}

// Transcode decodes raw and produces the bytes to store. Any decode or
// encode problem is returned as an error; callers treat it as a degraded
// outcome, not a fatal one.
func (t *Transcoder) Transcode(raw []byte) (*Encoded, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if format == "webp" && t.keepWebp {
		return &Encoded{Bytes: raw, Ext: "webp", Width: width, Height: height}, nil
	}

	// JPEG has no alpha; composite transparent sources onto white first
	if hasAlpha(img) {
		img = flattenOnWhite(img)
	}

	if width > t.maxWidth {
		ratio := float64(t.maxWidth) / float64(width)
		newHeight := int(float64(height) * ratio)
		dst := image.NewRGBA(image.Rect(0, 0, t.maxWidth, newHeight))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
		img = dst
		width, height = t.maxWidth, newHeight
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: t.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &Encoded{Bytes: buf.Bytes(), Ext: "jpg", Width: width, Height: height}, nil
}

func hasAlpha(img image.Image) bool {
	switch img.ColorModel() {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model, color.AlphaModel:
		return true
	}
	_, paletted := img.ColorModel().(color.Palette)
	return paletted
}

func flattenOnWhite(img image.Image) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Over)
	return dst
}
