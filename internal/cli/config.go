package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/reflow/pkg/cache"
	"github.com/matzehuels/reflow/pkg/pipeline"
)

// configFile is the config file name inside the config directory.
const configFile = "config.toml"

// Config is the on-disk configuration. Every field is optional; command-line
// flags take precedence over it.
//
//	[page]
//	width = 600
//	height = 800
//
//	[output]
//	format = "jpeg"
//	quality = 85
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//	ttl = "72h"
//
//	[server]
//	addr = ":8080"
//	root = "/srv/scans"
type Config struct {
	Page   PageConfig   `toml:"page"`
	Output OutputConfig `toml:"output"`
	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
}

// PageConfig holds engine settings.
type PageConfig struct {
	Width             int  `toml:"width"`
	Height            int  `toml:"height"`
	MaxFragmentHeight int  `toml:"max_fragment_height"`
	Background        *int `toml:"background"`
}

// OutputConfig holds sink settings.
type OutputConfig struct {
	Container string `toml:"container"`
	Format    string `toml:"format"`
	Quality   int    `toml:"quality"`
	Levels    int    `toml:"levels"`
	Rotate    int    `toml:"rotate"`
}

// CacheConfig selects the render cache backend.
type CacheConfig struct {
	Backend       string   `toml:"backend"`
	Dir           string   `toml:"dir"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	TTL           duration `toml:"ttl"`
}

// ServerConfig configures "reflow serve".
type ServerConfig struct {
	Addr        string `toml:"addr"`
	Root        string `toml:"root"`
	JobsDir     string `toml:"jobs_dir"`
	Concurrency int    `toml:"concurrency"`
}

// duration decodes TOML strings such as "72h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// loadConfig reads the config file at path. With an empty path the default
// location is used, and a missing default file yields an empty Config.
func loadConfig(path string) (Config, error) {
	var cfg Config
	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, configFile)
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// cacheConfig converts the [cache] section for cache.Open.
func (c Config) cacheConfig() cache.Config {
	return cache.Config{
		Backend: c.Cache.Backend,
		Dir:     c.Cache.Dir,
		Redis: cache.RedisConfig{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		},
	}
}

// applyTo fills options the user did not set on the command line from the
// [page] and [output] sections.
func (c Config) applyTo(cmd *cobra.Command, opts *pipeline.Options) {
	unset := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f == nil || !f.Changed
	}

	if unset("width") && c.Page.Width != 0 {
		opts.Width = c.Page.Width
	}
	if unset("height") && c.Page.Height != 0 {
		opts.Height = c.Page.Height
	}
	if unset("max-fragment-height") && c.Page.MaxFragmentHeight != 0 {
		opts.MaxFragmentHeight = c.Page.MaxFragmentHeight
	}
	if unset("background") && c.Page.Background != nil {
		bg := *c.Page.Background
		opts.Background = &bg
	}
	if unset("container") && c.Output.Container != "" {
		opts.Container = c.Output.Container
	}
	if unset("format") && c.Output.Format != "" {
		opts.Format = c.Output.Format
	}
	if unset("quality") && c.Output.Quality != 0 {
		opts.Quality = c.Output.Quality
	}
	if unset("levels") && c.Output.Levels != 0 {
		opts.Levels = c.Output.Levels
	}
	if unset("rotate") && c.Output.Rotate != 0 {
		opts.Rotate = c.Output.Rotate
	}
}
