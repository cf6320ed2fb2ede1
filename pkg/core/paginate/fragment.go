package paginate

import (
	"fmt"
	"image"

	apperr "github.com/matzehuels/reflow/pkg/errors"
)

// SourcePage is a rendered page after trailing background rows were trimmed.
type SourcePage struct {
	Index  int         // position in the page selection
	Number int         // page number in the document (1-based)
	Image  *image.Gray // trimmed raster; width is fixed document-wide
}

// Height returns the number of rows of the trimmed page.
func (p *SourcePage) Height() int { return p.Image.Rect.Dy() }

// Width returns the page width in pixels.
func (p *SourcePage) Width() int { return p.Image.Rect.Dx() }

// Fragment is an immutable view of rows [Start, End) of one source page.
type Fragment struct {
	page  *SourcePage
	start int
	end   int
}

// Page returns the source page the fragment belongs to.
func (f Fragment) Page() *SourcePage { return f.page }

// Start returns the first row of the fragment in source page coordinates.
func (f Fragment) Start() int { return f.start }

// End returns the row just past the fragment in source page coordinates.
func (f Fragment) End() int { return f.end }

// Height returns the number of rows in the fragment.
func (f Fragment) Height() int { return f.end - f.start }

// Width returns the width of the fragment, which is the page width.
func (f Fragment) Width() int { return f.page.Width() }

// Row returns the pixels of fragment row i (0 is the first row of the
// fragment). The slice aliases the source page.
func (f Fragment) Row(i int) []byte {
	img := f.page.Image
	off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+f.start+i)
	return img.Pix[off : off+img.Rect.Dx()]
}

// Split cuts the fragment at row at (relative to the fragment start) and
// returns the two halves. at must satisfy 0 < at < Height().
func (f Fragment) Split(at int) (head, tail Fragment) {
	if at <= 0 || at >= f.Height() {
		panic(fmt.Sprintf("paginate: split at %d outside fragment of height %d", at, f.Height()))
	}
	mid := f.start + at
	return Fragment{page: f.page, start: f.start, end: mid},
		Fragment{page: f.page, start: mid, end: f.end}
}

// String formats the fragment for logs and test failures.
func (f Fragment) String() string {
	if f.page == nil {
		return "Fragment{}"
	}
	return fmt.Sprintf("Fragment{page %d [%d,%d)}", f.page.Number, f.start, f.end)
}

// RenderError reports a page source failure. It is returned unchanged to the
// caller; the engine never retries a render.
type RenderError struct {
	Index int   // position of the page in the selection
	Page  int   // page number that failed
	Err   error // error returned by the document
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

// Unwrap returns the document's error.
func (e *RenderError) Unwrap() error { return e.Err }

// Code returns the error code for render failures.
func (e *RenderError) Code() apperr.Code { return apperr.ErrCodeRender }
