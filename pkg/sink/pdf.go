package sink

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"

	apperr "github.com/matzehuels/reflow/pkg/errors"
)

// DefaultCreator is recorded in the PDF info dictionary when PDFInfo names
// no creator.
const DefaultCreator = "reflow"

// PDFInfo is the document metadata written to the PDF.
type PDFInfo struct {
	Title   string
	Author  string
	Creator string
	Created time.Time // zero means now
}

// PDF collects pages into a single PDF file. Each page becomes one image
// covering the whole page, with page size in points equal to the image size
// in pixels.
type PDF struct {
	path    string
	enc     Encoder
	info    PDFInfo
	doc     *fpdf.Fpdf
	written int
	closed  bool
}

// NewPDF returns a sink writing to path, which must not exist yet.
// The file is written on Close.
func NewPDF(path string, enc Encoder, info PDFInfo) (*PDF, error) {
	if err := enc.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, apperr.New(apperr.ErrCodeAlreadyExists, "output file %s already exists", path)
	}
	if info.Creator == "" {
		info.Creator = DefaultCreator
	}
	if info.Created.IsZero() {
		info.Created = time.Now()
	}
	return &PDF{path: path, enc: enc, info: info}, nil
}

// WritePage encodes page and appends it to the document.
func (s *PDF) WritePage(ctx context.Context, page *image.Gray) error {
	if s.closed {
		return fmt.Errorf("write to closed PDF %s", s.path)
	}
	data, err := s.enc.EncodeBytes(page)
	if err != nil {
		return fmt.Errorf("encode page %d: %w", s.written+1, err)
	}

	// Rotation swaps the page dimensions.
	w, h := float64(page.Rect.Dx()), float64(page.Rect.Dy())
	if s.enc.Rotate == 90 || s.enc.Rotate == 270 {
		w, h = h, w
	}
	if s.doc == nil {
		s.doc = s.newDocument(w, h)
	}

	name := fmt.Sprintf("page%d", s.written+1)
	opts := fpdf.ImageOptions{ImageType: strings.ToUpper(string(s.enc.Format)), ReadDpi: false}
	s.doc.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	s.doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	s.doc.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
	if err := s.doc.Error(); err != nil {
		return fmt.Errorf("add page %d: %w", s.written+1, err)
	}
	s.written++
	return nil
}

// Written returns the number of pages added.
func (s *PDF) Written() int { return s.written }

// Path returns the output file.
func (s *PDF) Path() string { return s.path }

// Close writes the PDF file. A sink that never received a page writes
// nothing.
func (s *PDF) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.doc == nil {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}
	if err := s.doc.Output(f); err != nil {
		f.Close()
		os.Remove(s.path)
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return f.Close()
}

func (s *PDF) newDocument(w, h float64) *fpdf.Fpdf {
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetTitle(s.info.Title, true)
	doc.SetAuthor(s.info.Author, true)
	doc.SetCreator(s.info.Creator, true)
	doc.SetCreationDate(s.info.Created)
	return doc
}

var _ Sink = (*PDF)(nil)
