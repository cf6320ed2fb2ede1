// Package source defines page sources: documents that render numbered pages
// into 8-bit grayscale rasters.
//
// A [Document] is the only thing the pagination engine needs from the outside
// world. Implementations must return rasters of the same width for every page
// of a document; heights may differ per page. Page numbers are 1-based.
//
// Render failures are returned as-is; the engine never retries them.
//
// # Implementations
//
//   - [imagedir.Document]: a directory of page images
//   - [Cached]: wraps any Document with a render cache
//
// [imagedir.Document]: github.com/matzehuels/reflow/pkg/source/imagedir.Document
package source

import (
	"image"
)

// Document renders pages to grayscale rasters.
type Document interface {
	// PageCount returns the number of pages in the document.
	PageCount() int

	// RenderPage renders page number (1-based). The result must have the
	// document's fixed width.
	RenderPage(number int) (*image.Gray, error)
}

// PageReleaser is implemented by documents that want to know when a rendered
// page is no longer referenced by the engine.
type PageReleaser interface {
	ReleasePage(number int)
}

// Metadata describes a document for output containers.
type Metadata struct {
	Title  string
	Author string
}

// Describer is implemented by documents that carry metadata.
type Describer interface {
	Metadata() Metadata
}

// Fingerprinter is implemented by documents that can identify the content of
// a page cheaply, without rendering it. Fingerprints feed render cache keys.
type Fingerprinter interface {
	PageFingerprint(number int) (string, error)
}

// AllPages returns the page numbers 1..doc.PageCount().
func AllPages(doc Document) []int {
	n := doc.PageCount()
	pages := make([]int, n)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

// MetadataOf returns the metadata of doc, or the zero value if doc does not
// describe itself.
func MetadataOf(doc Document) Metadata {
	if d, ok := doc.(Describer); ok {
		return d.Metadata()
	}
	return Metadata{}
}
