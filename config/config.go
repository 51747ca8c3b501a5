// Package config handles exprcache.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/exprcache/cache"
	"github.com/chazu/exprcache/rewrite"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "exprcache.toml"

// Config represents an exprcache.toml file.
type Config struct {
	Cache CacheConfig `toml:"cache"`
	Log   LogConfig   `toml:"log"`

	// Dir is the directory containing the file (set at load time). Empty
	// for Default.
	Dir string `toml:"-"`
}

// CacheConfig configures the compile cache.
type CacheConfig struct {
	Shards        int    `toml:"shards"`
	CapturePrefix string `toml:"capture-prefix"`
}

// LogConfig configures commonlog. Verbosity follows commonlog.Configure:
// 0 is notice, 1 info, 2 and above debug, negative values quieter.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Cache.Shards == 0 {
		c.Cache.Shards = cache.DefaultShards
	}
	if c.Cache.CapturePrefix == "" {
		c.Cache.CapturePrefix = rewrite.DefaultCapturePrefix
	}
}

// Load parses exprcache.toml from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if c.Cache.Shards < 0 {
		return nil, fmt.Errorf("%s: cache.shards must not be negative, got %d", path, c.Cache.Shards)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c.applyDefaults()
	return &c, nil
}

// FindAndLoad walks up from startDir to find exprcache.toml, then loads it.
// Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// LogFile returns the log file path resolved against Dir, or nil for
// stderr.
func (c *Config) LogFile() *string {
	if c.Log.File == "" {
		return nil
	}
	path := c.Log.File
	if !filepath.IsAbs(path) && c.Dir != "" {
		path = filepath.Join(c.Dir, path)
	}
	return &path
}

// CacheOptions converts the configuration into cache options.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Shards: c.Cache.Shards,
		Match:  rewrite.PrefixMatcher(c.Cache.CapturePrefix),
		Log:    commonlog.GetLogger("exprcache.cache"),
	}
}
