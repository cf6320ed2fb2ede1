package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// Servers sharing a Redis database use it to keep their entries apart.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "reflow:v1:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// PageKey generates a prefixed key for a rendered page.
func (k *ScopedKeyer) PageKey(fingerprint string, opts PageKeyOpts) string {
	return k.prefix + k.inner.PageKey(fingerprint, opts)
}
