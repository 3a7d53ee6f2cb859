// Package config holds runtime tuning for the correlation engine.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls caps, TTLs, and maintenance intervals.
type Config struct {
	HistoryCap         int           `yaml:"history_cap"`          // max node ids kept per tab
	PendingTTL         time.Duration `yaml:"pending_ttl"`          // default intent expiry
	RedirectTTL        time.Duration `yaml:"redirect_ttl"`         // redirect intent expiry
	SweepInterval      time.Duration `yaml:"sweep_interval"`       // expired-intent sweep period
	CachePruneInterval time.Duration `yaml:"cache_prune_interval"` // registry cache prune period
	CacheMaxAge        time.Duration `yaml:"cache_max_age"`        // URL-resolution cache entry lifetime
	ScriptRingSize     int           `yaml:"script_ring_size"`     // per-tab script navigation records
	CoalesceWindow     time.Duration `yaml:"coalesce_window"`      // store save dedup window
}

// Default returns the tuning used when no config file is present.
func Default() Config {
	return Config{
		HistoryCap:         100,
		PendingTTL:         10 * time.Second,
		RedirectTTL:        5 * time.Second,
		SweepInterval:      5 * time.Second,
		CachePruneInterval: 5 * time.Minute,
		CacheMaxAge:        5 * time.Minute,
		ScriptRingSize:     10,
		CoalesceWindow:     2 * time.Second,
	}
}

// Load reads a YAML config file, filling unset fields with defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.HistoryCap <= 0 {
		c.HistoryCap = def.HistoryCap
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = def.PendingTTL
	}
	if c.RedirectTTL <= 0 {
		c.RedirectTTL = def.RedirectTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.CachePruneInterval <= 0 {
		c.CachePruneInterval = def.CachePruneInterval
	}
	if c.CacheMaxAge <= 0 {
		c.CacheMaxAge = def.CacheMaxAge
	}
	if c.ScriptRingSize <= 0 {
		c.ScriptRingSize = def.ScriptRingSize
	}
	if c.CoalesceWindow <= 0 {
		c.CoalesceWindow = def.CoalesceWindow
	}
}
