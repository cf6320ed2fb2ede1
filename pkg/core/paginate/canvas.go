package paginate

import (
	"fmt"
	"image"
)

// newCanvas allocates a w x h page filled with the background value.
func newCanvas(w, h int, background uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	if background != 0 {
		for i := range img.Pix {
			img.Pix[i] = background
		}
	}
	return img
}

// blit copies every row of f onto dst starting at row y.
// Widths must match and the fragment must fit below y.
func blit(dst *image.Gray, y int, f Fragment) {
	if f.Width() != dst.Rect.Dx() {
		panic(fmt.Sprintf("paginate: fragment width %d does not match canvas width %d", f.Width(), dst.Rect.Dx()))
	}
	if y < 0 || y+f.Height() > dst.Rect.Dy() {
		panic(fmt.Sprintf("paginate: fragment of height %d does not fit at row %d of %d", f.Height(), y, dst.Rect.Dy()))
	}
	for i := 0; i < f.Height(); i++ {
		off := dst.PixOffset(dst.Rect.Min.X, dst.Rect.Min.Y+y+i)
		copy(dst.Pix[off:off+dst.Rect.Dx()], f.Row(i))
	}
}
