// Package imagedir implements a document backed by a directory of page images.
//
// Files are ordered by name, so scanners that number their output
// (scan_001.png, scan_002.png, ...) produce pages in reading order. Every
// page is converted to 8-bit grayscale and scaled to a common render width.
package imagedir

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	apperr "github.com/matzehuels/reflow/pkg/errors"
	"github.com/matzehuels/reflow/pkg/source"
)

// Extensions lists the file extensions recognized as page images.
var Extensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp", ".gif"}

// Options configures a Document.
type Options struct {
	// Width is the render width in pixels. Zero uses the width of the first
	// rendered page for the whole document.
	Width int

	// Title and Author end up in container metadata. Title defaults to the
	// directory name.
	Title  string
	Author string
}

// Document is a directory of page images.
type Document struct {
	dir   string
	files []string
	opts  Options
	width int
}

// Open scans dir for page images.
func Open(dir string, opts Options) (*Document, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, apperr.Wrap(apperr.ErrCodeFileNotFound, err, "open %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, apperr.New(apperr.ErrCodeInvalidInput, "%s is not a directory", dir)
	}
	if opts.Width < 0 {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "render width must not be negative, got %d", opts.Width)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !isImage(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, apperr.New(apperr.ErrCodeInvalidInput, "%s contains no page images", dir)
	}
	sort.Strings(files)

	if opts.Title == "" {
		opts.Title = filepath.Base(filepath.Clean(dir))
	}
	return &Document{dir: dir, files: files, opts: opts, width: opts.Width}, nil
}

// PageCount returns the number of images.
func (d *Document) PageCount() int { return len(d.files) }

// Files returns the image paths in page order.
func (d *Document) Files() []string { return append([]string(nil), d.files...) }

// Dir returns the directory the document was opened from.
func (d *Document) Dir() string { return d.dir }

// RenderPage decodes page number (1-based), scales it to the render width and
// converts it to 8-bit grayscale.
func (d *Document) RenderPage(number int) (*image.Gray, error) {
	path, err := d.file(number)
	if err != nil {
		return nil, err
	}

	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidFormat, err, "decode %s", filepath.Base(path))
	}
	if d.width == 0 {
		d.width = src.Bounds().Dx()
	}
	if src.Bounds().Dx() != d.width {
		src = imaging.Resize(src, d.width, 0, imaging.Lanczos)
	}
	return toGray(src), nil
}

// PageFingerprint identifies a page by path, size and modification time.
func (d *Document) PageFingerprint(number int) (string, error) {
	path, err := d.file(number)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return fmt.Sprintf("%s:%d:%d", abs, info.Size(), info.ModTime().UnixNano()), nil
}

// Metadata returns the configured title and author.
func (d *Document) Metadata() source.Metadata {
	return source.Metadata{Title: d.opts.Title, Author: d.opts.Author}
}

func (d *Document) file(number int) (string, error) {
	if number < 1 || number > len(d.files) {
		return "", apperr.New(apperr.ErrCodeInvalidPages, "page %d not found (document has %d pages)", number, len(d.files))
	}
	return d.files[number-1], nil
}

// toGray converts any image to an 8-bit gray raster anchored at the origin.
func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

var (
	_ source.Document      = (*Document)(nil)
	_ source.Describer     = (*Document)(nil)
	_ source.Fingerprinter = (*Document)(nil)
)
