package paginate

import (
	"image"

	"github.com/matzehuels/reflow/pkg/core/scanline"
	apperr "github.com/matzehuels/reflow/pkg/errors"
	"github.com/matzehuels/reflow/pkg/source"
)

// fragmenterState is the tagged state of a Fragmenter.
type fragmenterState interface{ isFragmenterState() }

// needPage: the next fragment must come from page selection index next.
// prev is the page that was just finished, released on the next pull.
type needPage struct {
	next int
	prev *SourcePage
}

// needFragment: page is loaded and rows [y, page end) are still to be cut.
type needFragment struct {
	page *SourcePage
	y    int
}

// exhausted: every selected page has been cut.
type exhausted struct{}

func (needPage) isFragmenterState()     {}
func (needFragment) isFragmenterState() {}
func (exhausted) isFragmenterState()    {}

// Fragmenter turns selected document pages into height-bounded fragments.
type Fragmenter struct {
	doc        source.Document
	pages      []int
	maxHeight  int
	classifier scanline.Classifier

	state    fragmenterState
	width    int // document width, fixed by the first loaded page
	loaded   int // selection index of the most recently loaded page
	hardCuts int
}

// NewFragmenter creates a fragmenter over the given page selection.
// It validates its arguments and does not render anything.
func NewFragmenter(doc source.Document, pages []int, maxHeight int, background uint8) (*Fragmenter, error) {
	if doc == nil {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "no document")
	}
	if err := apperr.ValidatePages(pages, 0); err != nil {
		return nil, err
	}
	if err := apperr.ValidateHeight("max fragment height", maxHeight); err != nil {
		return nil, err
	}
	f := &Fragmenter{
		doc:        doc,
		pages:      append([]int(nil), pages...),
		maxHeight:  maxHeight,
		classifier: scanline.New(background),
	}
	f.Reset()
	return f, nil
}

// Reset rewinds to the first selected page and releases any held page.
func (f *Fragmenter) Reset() {
	switch s := f.state.(type) {
	case needPage:
		f.release(s.prev)
	case needFragment:
		f.release(s.page)
	}
	f.state = needPage{}
	f.width = 0
	f.loaded = -1
	f.hardCuts = 0
}

// Next returns the next fragment. ok is false once every page has been cut.
// Fragments have a height in (0, maxHeight] and are returned in strictly
// increasing (page index, start row) order.
func (f *Fragmenter) Next() (frag Fragment, ok bool, err error) {
	for {
		switch s := f.state.(type) {
		case exhausted:
			return Fragment{}, false, nil

		case needPage:
			f.release(s.prev)
			if s.next >= len(f.pages) {
				f.state = exhausted{}
				return Fragment{}, false, nil
			}
			f.state = needPage{next: s.next}

			page, err := f.load(s.next)
			if err != nil {
				return Fragment{}, false, err
			}
			if page.Height() == 0 {
				f.state = needPage{next: s.next + 1, prev: page}
				continue
			}
			f.state = needFragment{page: page}

		case needFragment:
			frag := f.cut(s.page, s.y)
			if frag.end == s.page.Height() {
				f.state = needPage{next: s.page.Index + 1, prev: s.page}
			} else {
				f.state = needFragment{page: s.page, y: frag.end}
			}
			return frag, true, nil
		}
	}
}

// ProcessedPageIndex returns the selection index of the most recently loaded
// page, or -1 before the first page is loaded.
func (f *Fragmenter) ProcessedPageIndex() int { return f.loaded }

// PageNumber returns the document page number of the most recently loaded
// page, or 0 before the first page is loaded.
func (f *Fragmenter) PageNumber() int {
	if f.loaded < 0 {
		return 0
	}
	return f.pages[f.loaded]
}

// TotalPages returns the number of selected pages.
func (f *Fragmenter) TotalPages() int { return len(f.pages) }

// Width returns the document width, or 0 before the first page is loaded.
func (f *Fragmenter) Width() int { return f.width }

// HardCuts returns how many fragments ended on a non-blank row because the
// search window held no blank row.
func (f *Fragmenter) HardCuts() int { return f.hardCuts }

// load renders selection index i and trims its trailing background rows.
func (f *Fragmenter) load(i int) (*SourcePage, error) {
	number := f.pages[i]
	f.loaded = i

	img, err := f.doc.RenderPage(number)
	if err != nil {
		return nil, &RenderError{Index: i, Page: number, Err: err}
	}
	if img == nil {
		return nil, apperr.New(apperr.ErrCodeContract, "page %d rendered to a nil raster", number)
	}

	w := img.Rect.Dx()
	switch {
	case w == 0:
		f.releaseNumber(number)
		return nil, apperr.New(apperr.ErrCodeContract, "page %d rendered with zero width", number)
	case f.width == 0:
		f.width = w
	case w != f.width:
		f.releaseNumber(number)
		return nil, apperr.New(apperr.ErrCodeContract,
			"page %d is %d pixels wide, document width is %d", number, w, f.width)
	}

	// An all-blank page keeps its full height so it still occupies space.
	if h := f.classifier.ContentHeight(img); h > 0 && h < img.Rect.Dy() {
		r := img.Rect
		img = img.SubImage(image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+h)).(*image.Gray)
	}
	return &SourcePage{Index: i, Number: number, Image: img}, nil
}

// cut returns the fragment starting at row y of page.
func (f *Fragmenter) cut(page *SourcePage, y int) Fragment {
	end := page.Height()
	candidate := min(end, y+f.maxHeight)
	if candidate < end {
		// Cut just above the nearest blank row, keeping at least one row.
		if off, ok := f.classifier.NearestBlankAbove(page.Image, candidate, y+1); ok {
			candidate += off
		} else {
			f.hardCuts++
		}
	}
	return Fragment{page: page, start: y, end: candidate}
}

func (f *Fragmenter) release(page *SourcePage) {
	if page != nil {
		f.releaseNumber(page.Number)
	}
}

func (f *Fragmenter) releaseNumber(number int) {
	if r, ok := f.doc.(source.PageReleaser); ok {
		r.ReleasePage(number)
	}
}
