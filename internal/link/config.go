package link

import (
	"fmt"
	"time"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config controls how a peer opens its outbound ring link.
type Config struct {
	// MaxDialAttempts <= 0 retries until the peer is cancelled.
	MaxDialAttempts int
	Backoff         BackoffConfig
}

// DefaultConfig retries a ring link dial five times, from 100ms up to 2s.
func DefaultConfig() Config {
	return Config{
		MaxDialAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 100 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     2 * time.Second,
			Jitter:       true,
		},
	}
}

func (c Config) Validate() error {
	if c.Backoff.InitialDelay < 0 {
		return fmt.Errorf("link: backoff initial delay must be >= 0")
	}
	if c.Backoff.MaxDelay < 0 {
		return fmt.Errorf("link: backoff max delay must be >= 0")
	}
	if c.Backoff.Multiplier != 0 && c.Backoff.Multiplier < 1.0 {
		return fmt.Errorf("link: backoff multiplier must be >= 1")
	}
	return nil
}
