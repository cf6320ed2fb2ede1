package pipeline

import (
	"image"

	apperr "github.com/matzehuels/reflow/pkg/errors"
	"github.com/matzehuels/reflow/pkg/source"
)

// passthrough emits every selected source page unchanged, one output page
// per source page.
type passthrough struct {
	doc     source.Document
	pages   []int
	next    int
	current *image.Gray
}

func newPassthrough(doc source.Document, pages []int) (*passthrough, error) {
	if doc == nil {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "no document")
	}
	if err := apperr.ValidatePages(pages, 0); err != nil {
		return nil, err
	}
	return &passthrough{doc: doc, pages: pages}, nil
}

func (p *passthrough) Advance() (bool, error) {
	if p.current != nil {
		p.release(p.pages[p.next-1])
		p.current = nil
	}
	if p.next >= len(p.pages) {
		return false, nil
	}
	number := p.pages[p.next]
	img, err := p.doc.RenderPage(number)
	if err != nil {
		return false, apperr.Wrap(apperr.ErrCodeRender, err, "render page %d", number)
	}
	p.next++
	p.current = img
	return true, nil
}

func (p *passthrough) Current() *image.Gray { return p.current }

func (p *passthrough) ProcessedPageIndex() int { return p.next - 1 }

func (p *passthrough) release(number int) {
	if r, ok := p.doc.(source.PageReleaser); ok {
		r.ReleasePage(number)
	}
}
