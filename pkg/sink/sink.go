// Package sink writes composed output pages to their destination.
//
// A [Sink] receives finished pages one at a time, in order, and owns them
// once WritePage returns. Two containers are provided:
//
//   - [ImageSequence]: one image file per page in a new directory
//   - [PDF]: a single PDF with one full-bleed image per page
//
// Both run pages through an [Encoder] first, which reduces gray levels,
// rotates for landscape devices and serializes to PNG or JPEG.
package sink

import (
	"context"
	"image"
)

// Sink consumes output pages.
type Sink interface {
	// WritePage encodes and stores one page.
	WritePage(ctx context.Context, page *image.Gray) error

	// Close flushes the container. It must be called even after a failed or
	// canceled run so partial output is finalized.
	Close() error
}

// Location is implemented by sinks that write to the filesystem.
type Location interface {
	Path() string
}
