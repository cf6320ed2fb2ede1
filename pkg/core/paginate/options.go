package paginate

import "github.com/matzehuels/reflow/pkg/core/scanline"

// Option configures a Composer.
type Option func(*config)

type config struct {
	maxFragmentHeight int
	maxFragmentSet    bool
	background        uint8
}

func defaultConfig() config {
	return config{background: scanline.DefaultBackground}
}

// WithMaxFragmentHeight bounds the height of fragments cut from source
// pages. Without it the bound is the target height; an explicit value must
// be positive.
func WithMaxFragmentHeight(h int) Option {
	return func(c *config) {
		c.maxFragmentHeight = h
		c.maxFragmentSet = true
	}
}

// WithBackground sets the luminance treated as blank. Canvases are filled
// with the same value. It defaults to white (255).
func WithBackground(bg uint8) Option {
	return func(c *config) { c.background = bg }
}
