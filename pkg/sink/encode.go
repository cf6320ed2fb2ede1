package sink

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	apperr "github.com/matzehuels/reflow/pkg/errors"
)

// Format is an output image codec.
type Format string

// Supported output formats.
const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts png, jpeg and jpg in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", apperr.New(apperr.ErrCodeInvalidFormat, "unsupported image format %q (use png or jpeg)", s)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// Valid gray level counts and rotation angles.
var (
	ValidLevels    = []int{4, 16, 256}
	ValidRotations = []int{0, 90, 180, 270}
)

// Encoder turns output pages into image files.
type Encoder struct {
	Format  Format
	Quality int // JPEG quality, 1-100
	Levels  int // gray levels: 4, 16 or 256
	Rotate  int // clockwise degrees: 0, 90, 180 or 270
}

// Validate checks the settings and fills zero values with defaults.
func (e *Encoder) Validate() error {
	if e.Format == "" {
		e.Format = FormatPNG
	}
	if e.Quality == 0 {
		e.Quality = 90
	}
	if e.Levels == 0 {
		e.Levels = 256
	}
	if e.Format != FormatPNG && e.Format != FormatJPEG {
		return apperr.New(apperr.ErrCodeInvalidFormat, "unsupported image format %q", e.Format)
	}
	if e.Quality < 1 || e.Quality > 100 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "quality must be between 1 and 100, got %d", e.Quality)
	}
	if !contains(ValidLevels, e.Levels) {
		return apperr.New(apperr.ErrCodeInvalidConfig, "gray levels must be one of %v, got %d", ValidLevels, e.Levels)
	}
	if !contains(ValidRotations, e.Rotate) {
		return apperr.New(apperr.ErrCodeInvalidConfig, "rotation must be one of %v, got %d", ValidRotations, e.Rotate)
	}
	return nil
}

// Process applies gray level reduction and rotation. The input is not
// modified.
func (e Encoder) Process(page *image.Gray) *image.Gray {
	out := quantize(page, e.Levels)

	var rotated *image.NRGBA
	switch e.Rotate {
	case 90:
		rotated = imaging.Rotate270(out)
	case 180:
		rotated = imaging.Rotate180(out)
	case 270:
		rotated = imaging.Rotate90(out)
	default:
		return out
	}
	gray := image.NewGray(image.Rect(0, 0, rotated.Rect.Dx(), rotated.Rect.Dy()))
	draw.Draw(gray, gray.Bounds(), rotated, rotated.Rect.Min, draw.Src)
	return gray
}

// Encode processes page and writes it to w.
func (e Encoder) Encode(w io.Writer, page *image.Gray) error {
	img := e.Process(page)
	if e.Format == FormatJPEG {
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(e.Quality))
	}
	return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
}

// EncodeBytes is Encode into a fresh buffer.
func (e Encoder) EncodeBytes(page *image.Gray) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf, page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String describes the encoder for logs.
func (e Encoder) String() string {
	return fmt.Sprintf("%s q=%d levels=%d rotate=%d", e.Format, e.Quality, e.Levels, e.Rotate)
}

// quantize maps every pixel to the nearest of n evenly spaced gray levels.
func quantize(src *image.Gray, n int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	var lut [256]uint8
	for v := range lut {
		if n >= 256 {
			lut[v] = uint8(v)
			continue
		}
		step := (v*(n-1) + 127) / 255
		lut[v] = uint8(step * 255 / (n - 1))
	}

	for y := 0; y < h; y++ {
		s := src.Pix[src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y):][:w]
		d := dst.Pix[y*dst.Stride:][:w]
		for x, v := range s {
			d[x] = lut[v]
		}
	}
	return dst
}

func contains(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
