package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/matzehuels/reflow/pkg/cache"
	"github.com/matzehuels/reflow/pkg/observability"
)

type fakeDoc struct {
	pages    []*image.Gray
	renders  int
	released []int
	noPrint  bool
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

func (d *fakeDoc) RenderPage(n int) (*image.Gray, error) {
	d.renders++
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("page %d out of range", n)
	}
	return d.pages[n-1], nil
}

func (d *fakeDoc) PageFingerprint(n int) (string, error) {
	if d.noPrint {
		return "", errors.New("no fingerprint")
	}
	return fmt.Sprintf("fake:%d", n), nil
}

func (d *fakeDoc) ReleasePage(n int) { d.released = append(d.released, n) }

func (d *fakeDoc) Metadata() Metadata { return Metadata{Title: "Fake", Author: "Tester"} }

func grayPage(w, h int, seed byte) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = seed + byte(i)
	}
	return img
}

type countingCacheHooks struct {
	observability.NoopCacheHooks
	hits, misses, sets int
}

func (h *countingCacheHooks) OnCacheHit(context.Context, string)      { h.hits++ }
func (h *countingCacheHooks) OnCacheMiss(context.Context, string)     { h.misses++ }
func (h *countingCacheHooks) OnCacheSet(context.Context, string, int) { h.sets++ }

func TestAllPages(t *testing.T) {
	doc := &fakeDoc{pages: make([]*image.Gray, 3)}
	got := AllPages(doc)
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("AllPages() = %v, want [1 2 3]", got)
	}
}

func TestMetadataOf(t *testing.T) {
	if m := MetadataOf(&fakeDoc{}); m.Title != "Fake" {
		t.Errorf("MetadataOf() = %+v", m)
	}
	if m := MetadataOf(plainDoc{}); m != (Metadata{}) {
		t.Errorf("MetadataOf(plain) = %+v, want zero", m)
	}
}

type plainDoc struct{}

func (plainDoc) PageCount() int { return 1 }
func (plainDoc) RenderPage(int) (*image.Gray, error) {
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

func TestCachedServesHits(t *testing.T) {
	hooks := &countingCacheHooks{}
	observability.SetCacheHooks(hooks)
	defer observability.Reset()

	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	doc := &fakeDoc{pages: []*image.Gray{grayPage(5, 3, 10), grayPage(5, 7, 40)}}
	c := NewCached(ctx, doc, fc, CacheOptions{Key: cache.PageKeyOpts{Width: 5}})

	first, err := c.RenderPage(2)
	if err != nil {
		t.Fatalf("RenderPage error: %v", err)
	}
	second, err := c.RenderPage(2)
	if err != nil {
		t.Fatalf("RenderPage error: %v", err)
	}

	if doc.renders != 1 {
		t.Errorf("document rendered %d times, want 1", doc.renders)
	}
	if second.Rect != first.Rect || string(second.Pix) != string(first.Pix) {
		t.Error("cached raster differs from rendered raster")
	}
	if hooks.hits != 1 || hooks.misses != 1 || hooks.sets != 1 {
		t.Errorf("hooks: hits=%d misses=%d sets=%d, want 1/1/1", hooks.hits, hooks.misses, hooks.sets)
	}

	// A different render width is a different entry.
	other := NewCached(ctx, doc, fc, CacheOptions{Key: cache.PageKeyOpts{Width: 6}})
	if _, err := other.RenderPage(2); err != nil {
		t.Fatal(err)
	}
	if doc.renders != 2 {
		t.Errorf("document rendered %d times, want 2", doc.renders)
	}
}

func TestCachedSubImage(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	full := grayPage(6, 6, 1)
	sub := full.SubImage(image.Rect(0, 2, 6, 5)).(*image.Gray)
	doc := &fakeDoc{pages: []*image.Gray{sub}}
	c := NewCached(ctx, doc, fc, CacheOptions{})

	if _, err := c.RenderPage(1); err != nil {
		t.Fatal(err)
	}
	got, err := c.RenderPage(1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Rect.Dx() != 6 || got.Rect.Dy() != 3 {
		t.Fatalf("cached raster is %v", got.Rect)
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 6; x++ {
			if got.GrayAt(x, y) != sub.GrayAt(x, y+2) {
				t.Fatalf("pixel (%d,%d) differs", x, y)
			}
		}
	}
}

func TestCachedWithoutFingerprint(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	doc := &fakeDoc{pages: []*image.Gray{grayPage(2, 2, 0)}, noPrint: true}
	c := NewCached(ctx, doc, fc, CacheOptions{})

	for i := 0; i < 3; i++ {
		if _, err := c.RenderPage(1); err != nil {
			t.Fatal(err)
		}
	}
	if doc.renders != 3 {
		t.Errorf("document rendered %d times, want 3", doc.renders)
	}
}

func TestCachedCorruptEntry(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	doc := &fakeDoc{pages: []*image.Gray{grayPage(4, 4, 9)}}
	key := cache.NewDefaultKeyer().PageKey("fake:1", cache.PageKeyOpts{})
	if err := fc.Set(ctx, key, []byte("garbage"), time.Hour); err != nil {
		t.Fatal(err)
	}

	c := NewCached(ctx, doc, fc, CacheOptions{})
	img, err := c.RenderPage(1)
	if err != nil {
		t.Fatalf("RenderPage error: %v", err)
	}
	if doc.renders != 1 || img.Rect.Dx() != 4 {
		t.Error("corrupt entry should fall back to rendering")
	}
}

func TestCachedPropagatesRenderErrors(t *testing.T) {
	doc := &fakeDoc{pages: []*image.Gray{grayPage(2, 2, 0)}}
	c := NewCached(context.Background(), doc, cache.NewNullCache("test"), CacheOptions{})
	if _, err := c.RenderPage(5); err == nil {
		t.Error("expected error for missing page")
	}
}

func TestCachedForwards(t *testing.T) {
	doc := &fakeDoc{pages: make([]*image.Gray, 4)}
	c := NewCached(context.Background(), doc, cache.NewNullCache("test"), CacheOptions{})

	if c.PageCount() != 4 {
		t.Errorf("PageCount() = %d", c.PageCount())
	}
	c.ReleasePage(3)
	if len(doc.released) != 1 || doc.released[0] != 3 {
		t.Errorf("released = %v", doc.released)
	}
	if MetadataOf(c).Author != "Tester" {
		t.Error("metadata not forwarded")
	}
	if c.Unwrap() != Document(doc) {
		t.Error("Unwrap should return the wrapped document")
	}
}

func TestRasterCodec(t *testing.T) {
	img := grayPage(3, 4, 7)
	got, ok := decodeRaster(encodeRaster(img))
	if !ok {
		t.Fatal("decodeRaster rejected encoded raster")
	}
	if got.Rect != img.Rect || string(got.Pix) != string(img.Pix) {
		t.Error("decoded raster differs")
	}

	for _, bad := range [][]byte{nil, []byte("RFG1"), []byte("XXXX00000000"), encodeRaster(img)[:20]} {
		if _, ok := decodeRaster(bad); ok {
			t.Errorf("decodeRaster(%q) should fail", bad)
		}
	}
}
