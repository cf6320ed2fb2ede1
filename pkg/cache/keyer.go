package cache

// Keyer builds cache keys.
type Keyer interface {
	// PageKey returns the key of a rendered page.
	PageKey(fingerprint string, opts PageKeyOpts) string
}

// PageKeyOpts holds the render settings that change a page's raster.
type PageKeyOpts struct {
	Width      int // render width; 0 means the document's native width
	Background int // luminance treated as blank
}

const pageKeyPrefix = "page:"

// DefaultKeyer produces keys of the form "page:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// PageKey hashes the fingerprint together with the render settings.
func (DefaultKeyer) PageKey(fingerprint string, opts PageKeyOpts) string {
	return pageKeyPrefix + pageDigest(fingerprint, opts)
}
