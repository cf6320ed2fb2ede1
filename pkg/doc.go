// Package pkg provides the core libraries for reflow, which re-paginates
// scanned documents for small screens.
//
// # Overview
//
// Reflow cuts page images at blank rows and reassembles the pieces into
// pages of a fixed height. The pkg directory is organized into these areas:
//
//  1. [core] - The engine (row classification, fragmenting, composing)
//  2. [source] - Page sources and the render cache wrapper
//  3. [sink] - Output containers (image sequence, PDF) and page encoding
//  4. [pipeline] - Orchestration (source → engine → sink)
//  5. [jobs] - Background conversions for the HTTP API
//  6. [cache] - File, Redis and null cache backends
//
// # Architecture
//
// The data flow through reflow:
//
//	Directory of page images
//	         ↓
//	    [source] package (decode, scale to render width, 8-bit gray)
//	         ↓
//	    [core/paginate] Fragmenter (cut pages at blank rows)
//	         ↓
//	    [core/paginate] Composer (fill fixed-height output pages)
//	         ↓
//	    [sink] package (quantize, rotate, encode) → PNG/JPEG files or PDF
//
// The engine is pull-based and single-threaded: each call to
// Composer.Advance renders at most the source pages it needs and keeps at
// most one source page and one carried fragment alive.
//
// # Quick Start
//
// Re-paginate a directory with the pipeline:
//
//	import "github.com/matzehuels/reflow/pkg/pipeline"
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Input:  "scans/",
//	    Height: 800,
//	}, nil)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Output, result.Stats.OutputPages)
//
// Or drive the engine directly:
//
//	c, err := paginate.New(doc, []int{1, 2, 3}, 800)
//	for {
//	    ok, err := c.Advance()
//	    if err != nil || !ok {
//	        break
//	    }
//	    page := c.Current()
//	    // ...
//	}
//
// # Error Handling
//
// Errors carry machine-readable codes from [errors]:
//
//	if errors.Is(err, errors.ErrCodeRender) {
//	    // the page source failed
//	}
//
// [core]: https://pkg.go.dev/github.com/matzehuels/reflow/pkg/core
// [source]: https://pkg.go.dev/github.com/matzehuels/reflow/pkg/source
// [sink]: https://pkg.go.dev/github.com/matzehuels/reflow/pkg/sink
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/reflow/pkg/pipeline
// [jobs]: https://pkg.go.dev/github.com/matzehuels/reflow/pkg/jobs
// [cache]: https://pkg.go.dev/github.com/matzehuels/reflow/pkg/cache
// [errors]: https://pkg.go.dev/github.com/matzehuels/reflow/pkg/errors
//
// [core/paginate]: https://pkg.go.dev/github.com/matzehuels/reflow/pkg/core/paginate
package pkg
