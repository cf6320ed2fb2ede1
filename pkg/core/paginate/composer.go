package paginate

import (
	"image"

	"github.com/matzehuels/reflow/pkg/core/scanline"
	apperr "github.com/matzehuels/reflow/pkg/errors"
	"github.com/matzehuels/reflow/pkg/source"
)

// composerState is the tagged state of a Composer.
type composerState interface{ isComposerState() }

type (
	// empty: nothing is carried over; the next page starts with a fresh pull.
	empty struct{}
	// carrying: frag did not fit on the previous page and starts the next one.
	carrying struct{ frag Fragment }
	// finished: the fragment stream is exhausted and the last page was emitted.
	finished struct{}
	// failed: an error ended the run; it is returned until Reset.
	failed struct{ err error }
)

func (empty) isComposerState()    {}
func (carrying) isComposerState() {}
func (finished) isComposerState() {}
func (failed) isComposerState()   {}

// Stats summarizes the work done since construction or the last Reset.
type Stats struct {
	Pages      int // output pages produced
	Fragments  int // fragments pulled from the fragmenter
	HardCuts   int // cuts through non-blank rows, fragmenter and composer combined
	SoftSplits int // fragments split at a blank row to fill a page
	Deferred   int // fragments moved whole to the next page
}

// Composer assembles fragments into output pages of a fixed height.
type Composer struct {
	fragments  *Fragmenter
	target     int
	background uint8
	classifier scanline.Classifier

	state   composerState
	current *image.Gray
	stats   Stats
}

// New creates a composer producing pages of targetHeight rows from the
// selected pages of doc. Page numbers are 1-based. The document is not
// touched until the first call to Advance.
func New(doc source.Document, pages []int, targetHeight int, opts ...Option) (*Composer, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := apperr.ValidateHeight("target height", targetHeight); err != nil {
		return nil, err
	}
	if !cfg.maxFragmentSet {
		cfg.maxFragmentHeight = targetHeight
	} else if err := apperr.ValidateHeight("max fragment height", cfg.maxFragmentHeight); err != nil {
		return nil, err
	}

	frags, err := NewFragmenter(doc, pages, cfg.maxFragmentHeight, cfg.background)
	if err != nil {
		return nil, err
	}
	return &Composer{
		fragments:  frags,
		target:     targetHeight,
		background: cfg.background,
		classifier: scanline.New(cfg.background),
		state:      empty{},
	}, nil
}

// Advance composes the next output page. It returns false with a nil error
// once every fragment has been placed; Current then returns nil.
//
// Every page except possibly the last is filled until the next fragment no
// longer fits. A fragment that overflows is split at the nearest blank row
// above the page bottom, or exactly at the bottom when none exists, and its
// tail opens the following page.
func (c *Composer) Advance() (bool, error) {
	switch s := c.state.(type) {
	case failed:
		return false, s.err
	case finished:
		c.current = nil
		return false, nil
	}

	var canvas *image.Gray
	fill := 0

	for {
		var frag Fragment
		if s, ok := c.state.(carrying); ok {
			frag = s.frag
			c.state = empty{}
		} else {
			f, ok, err := c.fragments.Next()
			if err != nil {
				c.state = failed{err: err}
				c.current = nil
				return false, err
			}
			if !ok {
				c.state = finished{}
				if canvas == nil {
					c.current = nil
					return false, nil
				}
				c.emit(canvas)
				return true, nil
			}
			c.stats.Fragments++
			frag = f
		}

		if canvas == nil {
			canvas = newCanvas(frag.Width(), c.target, c.background)
		}

		room := c.target - fill
		if frag.Height() <= room {
			blit(canvas, fill, frag)
			fill += frag.Height()
			if fill == c.target {
				c.emit(canvas)
				return true, nil
			}
			continue
		}

		at := c.splitPoint(frag, room, fill > 0)
		if at > 0 {
			head, tail := frag.Split(at)
			blit(canvas, fill, head)
			frag = tail
		}
		c.state = carrying{frag: frag}
		c.emit(canvas)
		return true, nil
	}
}

// splitPoint returns how many rows of frag go onto the current page, given
// room free rows (room < frag.Height()). On a partly filled page the whole
// fragment may move to the next page (result 0) when its first row is blank.
func (c *Composer) splitPoint(frag Fragment, room int, partlyFilled bool) int {
	start := frag.Start()
	stop := start + 1
	if partlyFilled {
		stop = start
	}
	if off, ok := c.classifier.NearestBlankAbove(frag.Page().Image, start+room, stop); ok {
		if at := room + off; at > 0 {
			c.stats.SoftSplits++
			return at
		}
		c.stats.Deferred++
		return 0
	}
	c.stats.HardCuts++
	return room
}

func (c *Composer) emit(canvas *image.Gray) {
	c.current = canvas
	c.stats.Pages++
}

// Current returns the page produced by the last successful Advance, or nil.
// The caller owns the returned image.
func (c *Composer) Current() *image.Gray { return c.current }

// Reset rewinds to the first selected page and clears any error.
func (c *Composer) Reset() {
	c.fragments.Reset()
	c.state = empty{}
	c.current = nil
	c.stats = Stats{}
}

// ProcessedPageIndex returns the selection index of the source page most
// recently loaded, or -1 before any page was loaded.
func (c *Composer) ProcessedPageIndex() int { return c.fragments.ProcessedPageIndex() }

// PageNumber returns the document page number most recently loaded, or 0.
func (c *Composer) PageNumber() int { return c.fragments.PageNumber() }

// TotalPages returns the number of selected source pages.
func (c *Composer) TotalPages() int { return c.fragments.TotalPages() }

// Width returns the output page width, known once the first page was loaded.
func (c *Composer) Width() int { return c.fragments.Width() }

// TargetHeight returns the height of every output page.
func (c *Composer) TargetHeight() int { return c.target }

// Buffered returns the number of rows carried over to the next page.
func (c *Composer) Buffered() int {
	if s, ok := c.state.(carrying); ok {
		return s.frag.Height()
	}
	return 0
}

// Produced returns the number of pages emitted since the last Reset.
func (c *Composer) Produced() int { return c.stats.Pages }

// Stats returns counters for the current run.
func (c *Composer) Stats() Stats {
	s := c.stats
	s.HardCuts += c.fragments.HardCuts()
	return s
}

// Err returns the error that failed the run, if any.
func (c *Composer) Err() error {
	if s, ok := c.state.(failed); ok {
		return s.err
	}
	return nil
}
