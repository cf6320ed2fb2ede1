// Package scanline classifies raster rows of 8-bit grayscale pages.
//
// A row is blank when every pixel on it equals the background luminance.
// Blank rows are the only places the paginator is allowed to cut a page
// without slicing through content, so this package answers two questions:
// is a given row blank, and where is the nearest blank row within a bounded
// window of rows.
//
// The two searches ([Classifier.NearestBlankAbove] and
// [Classifier.NearestBlankBelow]) are deliberately separate functions rather
// than one routine switched by a direction flag. Both report NotFound (ok ==
// false) when the window contains no blank row, and also when every row from
// the starting row to the window boundary is blank: cutting there would
// produce an empty slice.
//
// Row coordinates are always relative to the top of the image, regardless of
// the image's Rect origin.
package scanline

import "image"

// DefaultBackground is the background luminance of 8-bit grayscale pages (white).
const DefaultBackground uint8 = 255

// Classifier tests rows against a background luminance value.
type Classifier struct {
	Background uint8
}

// New returns a classifier for the given background value.
func New(background uint8) Classifier {
	return Classifier{Background: background}
}

// Band is a run of consecutive blank rows [Start, End).
type Band struct {
	Start int
	End   int
}

// Height returns the number of rows in the band.
func (b Band) Height() int { return b.End - b.Start }

// Row returns the pixels of row y (relative to the image top).
// The returned slice aliases the image buffer.
func Row(img *image.Gray, y int) []byte {
	w := img.Rect.Dx()
	off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
	return img.Pix[off : off+w]
}

// IsBlankRow reports whether every pixel on row y equals the background.
// Rows outside the image are never blank.
func (c Classifier) IsBlankRow(img *image.Gray, y int) bool {
	if img == nil || y < 0 || y >= img.Rect.Dy() {
		return false
	}
	for _, p := range Row(img, y) {
		if p != c.Background {
			return false
		}
	}
	return true
}

// NearestBlankAbove scans from row clamp(fromY, 0, height-1) toward the top of
// the image, stopping after row stopY, and returns the signed distance (<= 0)
// from the starting row to the first blank row found.
//
// ok is false when no blank row exists in [stopY, from], or when every row in
// that span is blank.
func (c Classifier) NearestBlankAbove(img *image.Gray, fromY, stopY int) (offset int, ok bool) {
	h := height(img)
	if h == 0 {
		return 0, false
	}
	from := clamp(fromY, 0, h-1)
	stop := max(stopY, 0)
	if stop > from {
		return 0, false
	}

	for y := from; y >= stop; y-- {
		if !c.IsBlankRow(img, y) {
			continue
		}
		if y == from && c.allBlank(img, stop, from) {
			return 0, false
		}
		return y - from, true
	}
	return 0, false
}

// NearestBlankBelow scans from row clamp(fromY, 0, height-1) toward the bottom
// of the image, stopping after row stopY, and returns the signed distance (>= 0)
// from the starting row to the first blank row found.
//
// ok is false when no blank row exists in [from, stopY], or when every row in
// that span is blank.
func (c Classifier) NearestBlankBelow(img *image.Gray, fromY, stopY int) (offset int, ok bool) {
	h := height(img)
	if h == 0 {
		return 0, false
	}
	from := clamp(fromY, 0, h-1)
	stop := min(stopY, h-1)
	if stop < from {
		return 0, false
	}

	for y := from; y <= stop; y++ {
		if !c.IsBlankRow(img, y) {
			continue
		}
		if y == from && c.allBlank(img, from, stop) {
			return 0, false
		}
		return y - from, true
	}
	return 0, false
}

// ContentHeight returns the number of rows up to and including the last
// non-blank row. It is 0 for an image that is entirely background.
func (c Classifier) ContentHeight(img *image.Gray) int {
	for y := height(img) - 1; y >= 0; y-- {
		if !c.IsBlankRow(img, y) {
			return y + 1
		}
	}
	return 0
}

// Bands returns every maximal run of blank rows, top to bottom.
func (c Classifier) Bands(img *image.Gray) []Band {
	h := height(img)
	var bands []Band

	for y := 0; y < h; {
		off, ok := c.NearestBlankBelow(img, y, h-1)
		if !ok {
			// Either no blank row remains, or everything left is blank.
			if c.allBlank(img, y, h-1) {
				bands = append(bands, Band{Start: y, End: h})
			}
			break
		}
		start := y + off
		end := start + 1
		for end < h && c.IsBlankRow(img, end) {
			end++
		}
		bands = append(bands, Band{Start: start, End: end})
		y = end
	}
	return bands
}

// allBlank reports whether every row in [lo, hi] is blank.
func (c Classifier) allBlank(img *image.Gray, lo, hi int) bool {
	for y := lo; y <= hi; y++ {
		if !c.IsBlankRow(img, y) {
			return false
		}
	}
	return true
}

func height(img *image.Gray) int {
	if img == nil {
		return 0
	}
	return img.Rect.Dy()
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
