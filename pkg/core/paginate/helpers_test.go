package paginate

import (
	"fmt"
	"image"
	"testing"
)

// testDoc is an in-memory document that counts renders and live pages.
type testDoc struct {
	pages    map[int]*image.Gray
	count    int
	failOn   map[int]error
	renders  []int
	live     map[int]bool
	maxLive  int
	released []int
}

func newTestDoc(pages ...*image.Gray) *testDoc {
	d := &testDoc{
		pages:  make(map[int]*image.Gray),
		count:  len(pages),
		failOn: make(map[int]error),
		live:   make(map[int]bool),
	}
	for i, p := range pages {
		d.pages[i+1] = p
	}
	return d
}

func (d *testDoc) PageCount() int { return d.count }

func (d *testDoc) RenderPage(n int) (*image.Gray, error) {
	d.renders = append(d.renders, n)
	if err := d.failOn[n]; err != nil {
		return nil, err
	}
	p, ok := d.pages[n]
	if !ok {
		return nil, fmt.Errorf("no page %d", n)
	}
	d.live[n] = true
	d.maxLive = max(d.maxLive, len(d.live))

	// Hand out a copy so trimming cannot alias the fixture.
	cp := image.NewGray(p.Rect)
	copy(cp.Pix, p.Pix)
	return cp, nil
}

func (d *testDoc) ReleasePage(n int) {
	delete(d.live, n)
	d.released = append(d.released, n)
}

// blankPage returns a white w x h page.
func blankPage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// inkPage returns a white page where every row not listed in blank carries
// ink. Each inked row gets a distinct gray value so rows can be traced
// through the composer.
func inkPage(w, h int, blank ...int) *image.Gray {
	img := blankPage(w, h)
	skip := make(map[int]bool, len(blank))
	for _, y := range blank {
		skip[y] = true
	}
	for y := 0; y < h; y++ {
		if skip[y] {
			continue
		}
		img.Pix[img.PixOffset(y%w, y)] = uint8(y % 200)
	}
	return img
}

// rowsEqual reports whether row dy of dst equals row sy of src.
func rowsEqual(dst *image.Gray, dy int, src *image.Gray, sy int) bool {
	a := dst.Pix[dst.PixOffset(0, dy) : dst.PixOffset(0, dy)+dst.Rect.Dx()]
	b := src.Pix[src.PixOffset(0, sy) : src.PixOffset(0, sy)+src.Rect.Dx()]
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isBackground(img *image.Gray, y int) bool {
	for x := 0; x < img.Rect.Dx(); x++ {
		if img.GrayAt(x, y).Y != 255 {
			return false
		}
	}
	return true
}

// drain advances c until exhaustion and returns every page produced.
func drain(t *testing.T, c *Composer) []*image.Gray {
	t.Helper()
	var out []*image.Gray
	for {
		ok, err := c.Advance()
		if err != nil {
			t.Fatalf("Advance() error: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, c.Current())
		if len(out) > 10000 {
			t.Fatal("composer does not terminate")
		}
	}
}
