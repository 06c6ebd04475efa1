package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/shackles/internal/config"
	"github.com/danmuck/shackles/internal/ring"
)

// ringctl config.toml key mapping to ring runtime settings.
type fileConfig struct {
	Name                string   `toml:"name"`
	Peers               []string `toml:"peers"`
	CloseRing           bool     `toml:"close_ring"`
	BindConcurrency     int      `toml:"bind_concurrency"`
	AdminListenAddr     string   `toml:"admin_listen_addr"`
	CorsOrigins         []string `toml:"cors_origins"`
	DialTimeout         string   `toml:"dial_timeout"`
	KeepAlive           string   `toml:"keep_alive"`
	LinkMaxDialAttempts int      `toml:"link_max_dial_attempts"`
	LinkBackoffInitial  string   `toml:"link_backoff_initial"`
	LinkBackoffMax      string   `toml:"link_backoff_max"`
}

// ringctl loader for TOML config with default overlay. Keys absent from the
// file keep their ring.DefaultServiceConfig values.
func loadServiceConfig(path string) (ring.ServiceConfig, error) {
	cfg := ring.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ring.ServiceConfig{}, fmt.Errorf("load ring config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ring.ServiceConfig{}, fmt.Errorf("load ring config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.ServiceID = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("peers") {
		peers, err := config.ParsePeers(raw.Peers)
		if err != nil {
			return ring.ServiceConfig{}, fmt.Errorf("load ring config: %w", err)
		}
		cfg.Peers = peers
	}
	if meta.IsDefined("close_ring") {
		cfg.CloseRing = raw.CloseRing
	}
	if meta.IsDefined("bind_concurrency") {
		cfg.BindConcurrency = raw.BindConcurrency
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("link_max_dial_attempts") {
		cfg.Link.MaxDialAttempts = raw.LinkMaxDialAttempts
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"dial_timeout", raw.DialTimeout, &cfg.Scheduler.DialTimeout},
		{"keep_alive", raw.KeepAlive, &cfg.Scheduler.KeepAlive},
		{"link_backoff_initial", raw.LinkBackoffInitial, &cfg.Link.Backoff.InitialDelay},
		{"link_backoff_max", raw.LinkBackoffMax, &cfg.Link.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := config.ParseDuration(d.raw)
		if err != nil {
			return ring.ServiceConfig{}, fmt.Errorf("load ring config: %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return ring.ServiceConfig{}, fmt.Errorf("load ring config: %w", err)
	}
	return cfg, nil
}
