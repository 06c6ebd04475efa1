package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/shackles/internal/peer"
	"github.com/pelletier/go-toml/v2"
)

// RingConfig is the on-disk ring description. Durations are Go duration
// strings ("250ms", "5s").
type RingConfig struct {
	Name                string   `toml:"name"`
	Peers               []string `toml:"peers"`
	CloseRing           *bool    `toml:"close_ring"`
	BindConcurrency     int      `toml:"bind_concurrency"`
	AdminListenAddr     string   `toml:"admin_listen_addr"`
	CorsOrigins         []string `toml:"cors_origins"`
	DialTimeout         string   `toml:"dial_timeout"`
	KeepAlive           string   `toml:"keep_alive"`
	LinkMaxDialAttempts int      `toml:"link_max_dial_attempts"`
	LinkBackoffInitial  string   `toml:"link_backoff_initial"`
	LinkBackoffMax      string   `toml:"link_backoff_max"`
}

func LoadRingConfig(path string) (RingConfig, error) {
	var cfg RingConfig
	if err := loadToml(path, &cfg); err != nil {
		return RingConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "shackles.ring"
	}
	if cfg.CloseRing == nil {
		closed := true
		cfg.CloseRing = &closed
	}
	if err := ValidateRingConfig(cfg); err != nil {
		return RingConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateRingConfig(cfg RingConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("ring config missing name")
	}
	if _, err := ParsePeers(cfg.Peers); err != nil {
		return err
	}
	if cfg.BindConcurrency < 0 {
		return fmt.Errorf("bind_concurrency must be >= 0")
	}
	if cfg.LinkMaxDialAttempts < 0 {
		return fmt.Errorf("link_max_dial_attempts must be >= 0")
	}
	if addr := strings.TrimSpace(cfg.AdminListenAddr); addr != "" {
		admin, err := peer.Parse(addr)
		if err != nil {
			return fmt.Errorf("admin_listen_addr invalid: %w", err)
		}
		for _, raw := range cfg.Peers {
			if p, _ := peer.Parse(raw); p == admin {
				return fmt.Errorf("admin_listen_addr %s collides with a peer", admin)
			}
		}
	}
	for key, raw := range map[string]string{
		"dial_timeout":         cfg.DialTimeout,
		"keep_alive":           cfg.KeepAlive,
		"link_backoff_initial": cfg.LinkBackoffInitial,
		"link_backoff_max":     cfg.LinkBackoffMax,
	} {
		if _, err := ParseDuration(raw); err != nil {
			return fmt.Errorf("%s invalid: %w", key, err)
		}
	}
	return nil
}

// ParsePeers parses and validates a ring's peer list in ring order.
func ParsePeers(raw []string) ([]peer.Address, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("ring config needs at least one peer")
	}
	out := make([]peer.Address, 0, len(raw))
	seen := make(map[peer.Address]int, len(raw))
	for i, entry := range raw {
		addr, err := peer.Parse(entry)
		if err != nil {
			return nil, fmt.Errorf("peer[%d] invalid: %w", i, err)
		}
		if err := addr.Validate(); err != nil {
			return nil, fmt.Errorf("peer[%d] invalid: %w", i, err)
		}
		if prev, dup := seen[addr]; dup {
			return nil, fmt.Errorf("peer[%d] duplicates peer[%d] (%s)", i, prev, addr)
		}
		seen[addr] = i
		out = append(out, addr)
	}
	return out, nil
}

// ParseDuration accepts an empty string as zero.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0: %s", raw)
	}
	return d, nil
}
