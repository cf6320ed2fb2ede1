package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/matzehuels/reflow/pkg/core/paginate"
	"github.com/matzehuels/reflow/pkg/core/scanline"
	"github.com/matzehuels/reflow/pkg/source"
)

// PageReport describes how one source page would be cut.
type PageReport struct {
	Number        int `json:"number"`
	Width         int `json:"width"`
	Height        int `json:"height"`
	ContentHeight int `json:"content_height"`
	BlankBands    int `json:"blank_bands"`
	Fragments     int `json:"fragments"`
	HardCuts      int `json:"hard_cuts"`
}

// Report summarizes an inspected document.
type Report struct {
	Pages []PageReport `json:"pages"`

	// OutputPages is the number of pages a conversion would produce.
	OutputPages int `json:"output_pages"`
}

// Inspect renders the selected pages once each and reports their geometry
// and how the fragmenter would cut them at the configured height.
func (r *Runner) Inspect(ctx context.Context, opts Options) (*Report, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	doc, err := r.OpenDocument(ctx, opts)
	if err != nil {
		return nil, err
	}
	pages, err := ParsePages(opts.Pages, doc.PageCount())
	if err != nil {
		return nil, err
	}

	cls := scanline.New(opts.BackgroundValue())
	maxH := opts.MaxFragmentHeight
	if maxH == 0 {
		maxH = opts.Height
	}

	report := &Report{}
	for _, n := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.RenderPage(n)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n, err)
		}
		pr := PageReport{
			Number:        n,
			Width:         img.Rect.Dx(),
			Height:        img.Rect.Dy(),
			ContentHeight: cls.ContentHeight(img),
			BlankBands:    len(cls.Bands(img)),
		}
		if pr.Fragments, pr.HardCuts, err = countFragments(img, maxH, opts.BackgroundValue()); err != nil {
			return nil, err
		}
		report.Pages = append(report.Pages, pr)
		if rel, ok := doc.(source.PageReleaser); ok {
			rel.ReleasePage(n)
		}
	}

	// Composing again costs one more render per page, which the render
	// cache absorbs.
	c, err := paginate.New(doc, pages, opts.Height, opts.composerOptions()...)
	if err != nil {
		return nil, err
	}
	for {
		ok, err := c.Advance()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	report.OutputPages = c.Produced()
	return report, nil
}

// countFragments cuts a single rendered page.
func countFragments(img *image.Gray, maxH int, background uint8) (fragments, hardCuts int, err error) {
	f, err := paginate.NewFragmenter(singlePage{img}, []int{1}, maxH, background)
	if err != nil {
		return 0, 0, err
	}
	for {
		_, ok, err := f.Next()
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return fragments, f.HardCuts(), nil
		}
		fragments++
	}
}

// singlePage is a one-page document around an already rendered raster.
type singlePage struct{ img *image.Gray }

func (s singlePage) PageCount() int { return 1 }

func (s singlePage) RenderPage(int) (*image.Gray, error) { return s.img, nil }
