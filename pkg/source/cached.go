package source

import (
	"context"
	"encoding/binary"
	"image"
	"time"

	"github.com/matzehuels/reflow/pkg/cache"
	"github.com/matzehuels/reflow/pkg/observability"
)

const (
	cacheKeyType = "page"
	rasterMagic  = "RFG1"
	rasterHeader = 4 + 4 + 4 // magic, width, height
)

// CacheOptions configures a render cache.
type CacheOptions struct {
	Keyer cache.Keyer       // defaults to cache.NewDefaultKeyer()
	Key   cache.PageKeyOpts // render settings folded into every key
	TTL   time.Duration     // zero keeps entries until evicted
}

// Cached is a Document that serves rendered pages from a cache.
//
// Only documents implementing [Fingerprinter] can be cached; other documents
// are rendered directly. Cache failures never fail a render: a broken cache
// behaves like an empty one.
type Cached struct {
	ctx   context.Context
	doc   Document
	cache cache.Cache
	opts  CacheOptions
}

// NewCached wraps doc with a render cache. ctx scopes the cache calls made
// while rendering.
func NewCached(ctx context.Context, doc Document, c cache.Cache, opts CacheOptions) *Cached {
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	return &Cached{ctx: ctx, doc: doc, cache: c, opts: opts}
}

// PageCount returns the page count of the wrapped document.
func (c *Cached) PageCount() int { return c.doc.PageCount() }

// RenderPage returns the cached raster for number, rendering and storing it
// on a miss.
func (c *Cached) RenderPage(number int) (*image.Gray, error) {
	fp, ok := c.doc.(Fingerprinter)
	if !ok {
		return c.doc.RenderPage(number)
	}
	fingerprint, err := fp.PageFingerprint(number)
	if err != nil {
		return c.doc.RenderPage(number)
	}
	key := c.opts.Keyer.PageKey(fingerprint, c.opts.Key)

	if data, hit, err := c.cache.Get(c.ctx, key); err == nil && hit {
		if img, ok := decodeRaster(data); ok {
			observability.Cache().OnCacheHit(c.ctx, cacheKeyType)
			return img, nil
		}
		_ = c.cache.Delete(c.ctx, key)
	}
	observability.Cache().OnCacheMiss(c.ctx, cacheKeyType)

	img, err := c.doc.RenderPage(number)
	if err != nil {
		return nil, err
	}
	data := encodeRaster(img)
	if err := c.cache.Set(c.ctx, key, data, c.opts.TTL); err == nil {
		observability.Cache().OnCacheSet(c.ctx, cacheKeyType, len(data))
	}
	return img, nil
}

// ReleasePage forwards to the wrapped document.
func (c *Cached) ReleasePage(number int) {
	if r, ok := c.doc.(PageReleaser); ok {
		r.ReleasePage(number)
	}
}

// Metadata returns the wrapped document's metadata.
func (c *Cached) Metadata() Metadata { return MetadataOf(c.doc) }

// Unwrap returns the wrapped document.
func (c *Cached) Unwrap() Document { return c.doc }

// encodeRaster lays out the raster as magic, width, height, then rows.
func encodeRaster(img *image.Gray) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	buf := make([]byte, rasterHeader+w*h)
	copy(buf, rasterMagic)
	binary.BigEndian.PutUint32(buf[4:], uint32(w))
	binary.BigEndian.PutUint32(buf[8:], uint32(h))
	for y := 0; y < h; y++ {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(buf[rasterHeader+y*w:], img.Pix[off:off+w])
	}
	return buf
}

func decodeRaster(data []byte) (*image.Gray, bool) {
	if len(data) < rasterHeader || string(data[:4]) != rasterMagic {
		return nil, false
	}
	w := int(binary.BigEndian.Uint32(data[4:]))
	h := int(binary.BigEndian.Uint32(data[8:]))
	if w <= 0 || h < 0 || len(data)-rasterHeader != w*h {
		return nil, false
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, data[rasterHeader:])
	return img, true
}
