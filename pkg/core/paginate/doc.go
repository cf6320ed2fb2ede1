// Package paginate re-flows fixed-width page rasters into fixed-height output
// pages.
//
// # Overview
//
// Wide document pages are rendered at the width of the target display, which
// makes them taller than the display. This package cuts them into pieces that
// fit, and only cuts where a horizontal row is entirely background, so lines
// of text are not sliced in half. A hard cut is made only when no blank row
// exists within the search window.
//
// The work happens in two pull-based stages:
//
//  1. [Fragmenter] loads one source page at a time, trims its trailing
//     background rows, and yields [Fragment] slices no taller than the
//     maximum fragment height, each ending just above a blank row when one is
//     available.
//  2. [Composer] packs fragments into canvases of exactly the target height,
//     splitting a fragment that overflows the remaining space (again at a
//     blank row when possible) and carrying the tail over to the next canvas.
//
// # Usage
//
//	c, err := paginate.New(doc, source.AllPages(doc), 800)
//	if err != nil {
//	    return err
//	}
//	for {
//	    ok, err := c.Advance()
//	    if err != nil {
//	        return err
//	    }
//	    if !ok {
//	        break
//	    }
//	    write(c.Current())
//	}
//
// # Resources
//
// At most one source page and one carried-over fragment are alive at any
// moment, independent of document length. Fragments are views into the
// source page buffer; canvases are freshly allocated per output page and
// handed to the caller, who owns them from then on.
//
// # Errors
//
// Construction fails with an INVALID_CONFIG error before touching the
// document. Render failures surface as [*RenderError] (code RENDER_FAILED)
// carrying the index and number of the failing page; pages narrower or wider
// than the first page fail with CONTRACT_VIOLATION. After an error the
// composer stays failed until [Composer.Reset].
package paginate
