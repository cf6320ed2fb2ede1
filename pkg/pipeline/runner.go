package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/reflow/pkg/buildinfo"
	"github.com/matzehuels/reflow/pkg/cache"
	"github.com/matzehuels/reflow/pkg/core/paginate"
	apperr "github.com/matzehuels/reflow/pkg/errors"
	"github.com/matzehuels/reflow/pkg/observability"
	"github.com/matzehuels/reflow/pkg/sink"
	"github.com/matzehuels/reflow/pkg/source"
	"github.com/matzehuels/reflow/pkg/source/imagedir"
)

// Runner encapsulates conversion with caching.
// Both CLI and API use it to avoid duplicating source, cache and sink setup.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// CacheTTL is how long rendered source pages stay cached.
	CacheTTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, caching is disabled.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache("no cache configured")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:    c,
		Keyer:    keyer,
		Logger:   logger,
		CacheTTL: DefaultCacheTTL,
	}
}

// pageIterator is the pull interface shared by the composer and passthrough.
type pageIterator interface {
	Advance() (bool, error)
	Current() *image.Gray
	ProcessedPageIndex() int
}

// Execute opens the input, converts the selected pages and writes the output
// container. progress may be nil.
func (r *Runner) Execute(ctx context.Context, opts Options, progress *Progress) (*Result, error) {
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

	out, err := OpenSink(opts, source.MetadataOf(doc))
	if err != nil {
		return nil, err
	}

	stats, err := r.Convert(ctx, opts, doc, pages, out, progress)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("finalize output: %w", cerr)
	}
	return &Result{Output: opts.Output, Stats: stats}, err
}

// OpenDocument opens opts.Input as an image directory, wrapped in the
// runner's render cache unless opts.NoCache is set or the cache is disabled.
func (r *Runner) OpenDocument(ctx context.Context, opts Options) (source.Document, error) {
	doc, err := imagedir.Open(opts.Input, imagedir.Options{
		Width:  opts.Width,
		Title:  opts.Title,
		Author: opts.Author,
	})
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("opened document", "input", opts.Input, "pages", doc.PageCount())

	if opts.NoCache {
		return doc, nil
	}
	if reason, off := cache.Disabled(r.Cache); off {
		r.Logger.Debug("render cache disabled", "reason", reason)
		return doc, nil
	}
	return source.NewCached(ctx, doc, r.Cache, source.CacheOptions{
		Keyer: r.Keyer,
		Key:   opts.PageKeyOpts(),
		TTL:   r.CacheTTL,
	}), nil
}

// OpenSink creates the output container described by opts.
func OpenSink(opts Options, meta source.Metadata) (sink.Sink, error) {
	enc := opts.Encoder()
	switch opts.Container {
	case ContainerPDF:
		return sink.NewPDF(opts.Output, enc, sink.PDFInfo{
			Title:   meta.Title,
			Author:  meta.Author,
			Creator: buildinfo.Creator(),
		})
	case ContainerImages, "":
		return sink.NewImageSequence(opts.Output, enc)
	default:
		return nil, apperr.New(apperr.ErrCodeInvalidFormat, "invalid container %q", opts.Container)
	}
}

// Convert pulls output pages from doc and writes them to out. Cancellation
// is checked between output pages; a canceled run keeps the pages written so
// far and returns a CANCELED error. out is not closed.
func (r *Runner) Convert(ctx context.Context, opts Options, doc source.Document, pages []int, out sink.Sink, progress *Progress) (Stats, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return Stats{}, fmt.Errorf("invalid options: %w", err)
	}
	if progress == nil {
		progress = &Progress{}
	}

	start := time.Now()
	stats := Stats{SourcePages: len(pages)}

	var composer *paginate.Composer
	var it pageIterator
	if opts.Passthrough {
		p, err := newPassthrough(doc, pages)
		if err != nil {
			return stats, err
		}
		it = p
	} else {
		c, err := paginate.New(doc, pages, opts.Height, opts.composerOptions()...)
		if err != nil {
			return stats, err
		}
		composer, it = c, c
	}

	progress.start(len(pages))
	observability.Convert().OnConvertStart(ctx, len(pages))
	opts.Logger.Info("converting", "pages", len(pages), "height", opts.Height, "output", opts.Output)

	err := r.loop(ctx, opts, it, out, progress, &stats)

	if composer != nil {
		cs := composer.Stats()
		stats.Fragments = cs.Fragments
		stats.HardCuts = cs.HardCuts
		stats.SoftSplits = cs.SoftSplits
		stats.Deferred = cs.Deferred
	}
	stats.Duration = time.Since(start)
	stats.Canceled = apperr.Is(err, apperr.ErrCodeCanceled)
	progress.finish(err == nil)
	observability.Convert().OnConvertComplete(ctx, stats.OutputPages, stats.Duration, err)

	if err != nil {
		opts.Logger.Warn("conversion stopped", "produced", stats.OutputPages, "error", err)
		return stats, err
	}
	opts.Logger.Info("converted",
		"pages", stats.SourcePages,
		"produced", stats.OutputPages,
		"hard_cuts", stats.HardCuts,
		"duration", stats.Duration)
	return stats, nil
}

func (r *Runner) loop(ctx context.Context, opts Options, it pageIterator, out sink.Sink, progress *Progress, stats *Stats) error {
	for {
		if err := ctx.Err(); err != nil {
			return apperr.Wrap(apperr.ErrCodeCanceled, err, "canceled after %d pages", stats.OutputPages)
		}

		pageStart := time.Now()
		ok, err := it.Advance()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := out.WritePage(ctx, it.Current()); err != nil {
			return fmt.Errorf("write page %d: %w", stats.OutputPages+1, err)
		}
		stats.OutputPages++
		progress.page(it.ProcessedPageIndex() + 1)

		d := time.Since(pageStart)
		observability.Convert().OnPageProduced(ctx, stats.OutputPages, d)
		opts.Logger.Debug("wrote page", "page", stats.OutputPages, "source_index", it.ProcessedPageIndex(), "duration", d)
	}
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// composerOptions maps the engine settings onto composer options. A zero
// MaxFragmentHeight leaves the composer default in place.
func (o *Options) composerOptions() []paginate.Option {
	opts := []paginate.Option{paginate.WithBackground(o.BackgroundValue())}
	if o.MaxFragmentHeight > 0 {
		opts = append(opts, paginate.WithMaxFragmentHeight(o.MaxFragmentHeight))
	}
	return opts
}
