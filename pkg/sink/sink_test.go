package sink

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	apperr "github.com/matzehuels/reflow/pkg/errors"
)

// gradient returns a w x h page whose pixel value grows with x.
func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = uint8(x * 255 / max(w-1, 1))
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"png", FormatPNG, true},
		{"PNG", FormatPNG, true},
		{"jpg", FormatJPEG, true},
		{"jpeg", FormatJPEG, true},
		{"gif", "", false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
	if FormatJPEG.Ext() != ".jpg" || FormatPNG.Ext() != ".png" {
		t.Error("unexpected extensions")
	}
}

func TestEncoderValidate(t *testing.T) {
	var e Encoder
	if err := e.Validate(); err != nil {
		t.Fatalf("zero Encoder should validate: %v", err)
	}
	if e.Format != FormatPNG || e.Quality != 90 || e.Levels != 256 {
		t.Errorf("defaults = %+v", e)
	}

	bad := []Encoder{
		{Format: "tiff"},
		{Quality: 101},
		{Quality: -1},
		{Levels: 8},
		{Rotate: 45},
	}
	for _, b := range bad {
		if err := b.Validate(); err == nil {
			t.Errorf("Validate(%+v) should fail", b)
		}
	}
}

func TestQuantize(t *testing.T) {
	src := gradient(256, 1)

	tests := []struct {
		levels int
		want   map[uint8]bool
	}{
		{4, map[uint8]bool{0: true, 85: true, 170: true, 255: true}},
		{16, nil},
		{256, nil},
	}
	for _, tt := range tests {
		out := quantize(src, tt.levels)
		distinct := map[uint8]bool{}
		for _, v := range out.Pix {
			distinct[v] = true
		}
		if len(distinct) != tt.levels {
			t.Errorf("levels=%d: %d distinct values", tt.levels, len(distinct))
		}
		for v := range tt.want {
			if !distinct[v] {
				t.Errorf("levels=%d: missing value %d", tt.levels, v)
			}
		}
		if out.Pix[0] != 0 || out.Pix[255] != 255 {
			t.Errorf("levels=%d: black and white must be preserved", tt.levels)
		}
	}
}

func TestQuantizeSubImage(t *testing.T) {
	src := gradient(10, 10)
	sub := src.SubImage(image.Rect(2, 3, 7, 5)).(*image.Gray)
	out := quantize(sub, 256)
	if out.Rect.Dx() != 5 || out.Rect.Dy() != 2 {
		t.Fatalf("quantize(sub) is %v", out.Rect)
	}
	if out.GrayAt(0, 0) != sub.GrayAt(2, 3) {
		t.Error("quantize should read the sub-image origin")
	}
}

func TestProcessRotation(t *testing.T) {
	page := image.NewGray(image.Rect(0, 0, 4, 2))
	page.Pix[0] = 200 // top-left

	tests := []struct {
		rotate     int
		w, h, x, y int
	}{
		{0, 4, 2, 0, 0},
		{90, 2, 4, 1, 0},
		{180, 4, 2, 3, 1},
		{270, 2, 4, 0, 3},
	}
	for _, tt := range tests {
		out := Encoder{Levels: 256, Rotate: tt.rotate}.Process(page)
		if out.Rect.Dx() != tt.w || out.Rect.Dy() != tt.h {
			t.Errorf("rotate %d: size %dx%d, want %dx%d", tt.rotate, out.Rect.Dx(), out.Rect.Dy(), tt.w, tt.h)
			continue
		}
		if got := out.GrayAt(tt.x, tt.y).Y; got != 200 {
			t.Errorf("rotate %d: marked pixel not at (%d,%d)", tt.rotate, tt.x, tt.y)
		}
	}
	if page.Pix[0] != 200 || page.Rect.Dx() != 4 {
		t.Error("Process modified its input")
	}
}

func TestEncodeFormats(t *testing.T) {
	page := gradient(16, 8)

	data, err := Encoder{Format: FormatPNG, Levels: 256}.EncodeBytes(page)
	if err != nil {
		t.Fatalf("png encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Errorf("png decoded as %T, want *image.Gray", img)
	}

	data, err = Encoder{Format: FormatJPEG, Quality: 80, Levels: 256}.EncodeBytes(page)
	if err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jpeg decode: %v", err)
	}
	if cfg.Width != 16 || cfg.Height != 8 {
		t.Errorf("jpeg is %dx%d", cfg.Width, cfg.Height)
	}
}

func TestImageSequence(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out")

	s, err := NewImageSequence(dir, Encoder{Format: FormatJPEG})
	if err != nil {
		t.Fatalf("NewImageSequence error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.WritePage(ctx, gradient(10, 20)); err != nil {
			t.Fatalf("WritePage error: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"page_0001.jpg", "page_0002.jpg", "page_0003.jpg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if s.Written() != 3 || s.Path() != dir {
		t.Errorf("Written=%d Path=%s", s.Written(), s.Path())
	}

	if _, err := NewImageSequence(dir, Encoder{}); !apperr.Is(err, apperr.ErrCodeAlreadyExists) {
		t.Errorf("existing directory: error = %v, want ALREADY_EXISTS", err)
	}
}

func TestPDF(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "book.pdf")

	s, err := NewPDF(path, Encoder{Levels: 16, Rotate: 90}, PDFInfo{Title: "Book", Author: "Me"})
	if err != nil {
		t.Fatalf("NewPDF error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.WritePage(ctx, gradient(30, 40)); err != nil {
			t.Fatalf("WritePage error: %v", err)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("PDF should not be written before Close")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
	if s.Written() != 2 {
		t.Errorf("Written() = %d", s.Written())
	}

	if err := s.WritePage(ctx, gradient(30, 40)); err == nil {
		t.Error("WritePage after Close should fail")
	}
	if _, err := NewPDF(path, Encoder{}, PDFInfo{}); !apperr.Is(err, apperr.ErrCodeAlreadyExists) {
		t.Errorf("existing file: error = %v, want ALREADY_EXISTS", err)
	}
}

func TestPDFWithoutPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	s, err := NewPDF(path, Encoder{}, PDFInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if s.info.Creator != DefaultCreator || s.info.Created.IsZero() {
		t.Errorf("info defaults = %+v", s.info)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("a PDF without pages should not be written")
	}
}
