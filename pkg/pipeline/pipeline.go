// Package pipeline runs complete conversions: open a document, compose
// fixed-height pages from it, and write them to an output container.
//
// The same Runner backs the CLI and the job API server, so both share
// defaults, validation, caching and logging.
//
// # Architecture
//
// A conversion has three parts:
//
//  1. Source: [imagedir.Document], optionally wrapped in a render cache
//  2. Engine: [paginate.Composer], or a passthrough that emits source pages
//     unchanged
//  3. Sink: an image sequence directory or a PDF file
//
// The engine loop runs on the calling goroutine and checks for cancellation
// between output pages only. Observers follow along through [Progress], whose
// counters are safe to read from any goroutine.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Input:  "scans/",
//	    Height: 800,
//	    Width:  600,
//	}
//	var progress pipeline.Progress
//	result, err := runner.Execute(ctx, opts, &progress)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Output, result.Stats.OutputPages)
//
// [imagedir.Document]: github.com/matzehuels/reflow/pkg/source/imagedir.Document
// [paginate.Composer]: github.com/matzehuels/reflow/pkg/core/paginate.Composer
package pipeline

import (
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/reflow/pkg/cache"
	apperr "github.com/matzehuels/reflow/pkg/errors"
	"github.com/matzehuels/reflow/pkg/sink"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultHeight is the output page height in pixels.
	DefaultHeight = 800

	// DefaultWidth is the render width in pixels.
	DefaultWidth = 600

	// DefaultBackground is the luminance treated as blank (white).
	DefaultBackground = 255

	// DefaultFormat is the output image codec.
	DefaultFormat = "png"

	// DefaultQuality is the JPEG quality.
	DefaultQuality = 90

	// DefaultLevels is the number of gray levels in the output.
	DefaultLevels = 256

	// DefaultCacheTTL is how long rendered source pages stay cached.
	DefaultCacheTTL = 7 * 24 * time.Hour

	// OutputSuffix is appended to the input name to derive the default output.
	OutputSuffix = "_reflow"
)

// Container constants for output containers.
const (
	ContainerImages = "images"
	ContainerPDF    = "pdf"
)

// ValidContainers is the set of supported output containers.
var ValidContainers = map[string]bool{
	ContainerImages: true,
	ContainerPDF:    true,
}

// =============================================================================
// Options - Conversion Configuration
// =============================================================================

// Options contains all configuration for a conversion.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Source options
	Input string `json:"input"`
	Pages string `json:"pages,omitempty"` // e.g. "1-3,7"; empty selects all
	Width int    `json:"width,omitempty"` // render width in pixels

	// Engine options
	Height            int  `json:"height,omitempty"`
	MaxFragmentHeight int  `json:"max_fragment_height,omitempty"`
	Background        *int `json:"background,omitempty"`
	Passthrough       bool `json:"passthrough,omitempty"`

	// Output options
	Output    string `json:"output,omitempty"`
	Container string `json:"container,omitempty"`
	Format    string `json:"format,omitempty"`
	Quality   int    `json:"quality,omitempty"`
	Levels    int    `json:"levels,omitempty"`
	Rotate    int    `json:"rotate,omitempty"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`

	// Runtime options (not serialized)
	Logger  *log.Logger `json:"-"`
	NoCache bool        `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result describes a finished conversion.
type Result struct {
	// Output is the path of the written directory or file.
	Output string

	// Stats contains counters and timing.
	Stats Stats
}

// Stats contains conversion statistics.
type Stats struct {
	SourcePages int
	OutputPages int
	Fragments   int
	HardCuts    int
	SoftSplits  int
	Deferred    int
	Duration    time.Duration
	Canceled    bool
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Input == "" {
		return apperr.New(apperr.ErrCodeInvalidInput, "input is required")
	}
	o.SetDefaults()

	if err := apperr.ValidateHeight("height", o.Height); err != nil {
		return err
	}
	if err := apperr.ValidateHeight("width", o.Width); err != nil {
		return err
	}
	if o.MaxFragmentHeight < 0 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "max fragment height must be positive, got %d", o.MaxFragmentHeight)
	}
	if bg := *o.Background; bg < 0 || bg > 255 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "background must be between 0 and 255, got %d", bg)
	}
	if !ValidContainers[o.Container] {
		return apperr.New(apperr.ErrCodeInvalidFormat, "invalid container %q (must be one of: images, pdf)", o.Container)
	}
	enc := o.Encoder()
	if err := enc.Validate(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// SetDefaults fills zero values with defaults.
func (o *Options) SetDefaults() {
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Background == nil {
		bg := DefaultBackground
		o.Background = &bg
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if f, err := sink.ParseFormat(o.Format); err == nil {
		o.Format = string(f)
	}
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}
	if o.Levels == 0 {
		o.Levels = DefaultLevels
	}
	if o.Container == "" {
		o.Container = containerFromPath(o.Output)
	}
	if o.Output == "" && o.Input != "" {
		o.Output = DefaultOutputPath(o.Input, o.Container)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// BackgroundValue returns the configured background luminance.
func (o *Options) BackgroundValue() uint8 {
	if o.Background == nil {
		return DefaultBackground
	}
	return uint8(*o.Background)
}

// Encoder returns the sink encoder described by the output options.
func (o *Options) Encoder() sink.Encoder {
	return sink.Encoder{
		Format:  sink.Format(o.Format),
		Quality: o.Quality,
		Levels:  o.Levels,
		Rotate:  o.Rotate,
	}
}

// PageKeyOpts returns cache key options for rendered source pages.
func (o *Options) PageKeyOpts() cache.PageKeyOpts {
	return cache.PageKeyOpts{Width: o.Width, Background: int(o.BackgroundValue())}
}

// DefaultOutputPath derives the output location from the input path:
// "scans" becomes "scans_reflow" or "scans_reflow.pdf".
func DefaultOutputPath(input, container string) string {
	clean := filepath.Clean(input)
	base := strings.TrimSuffix(clean, filepath.Ext(clean))
	if container == ContainerPDF {
		return base + OutputSuffix + ".pdf"
	}
	return base + OutputSuffix
}

// containerFromPath picks the container from an output path's extension.
func containerFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return ContainerPDF
	}
	return ContainerImages
}
