package scheduler

import (
	"fmt"
	"time"
)

// Config for the TCP scheduler. Zero durations mean no timeout.
type Config struct {
	DialTimeout time.Duration
	KeepAlive   time.Duration
}

func DefaultConfig() Config {
	return Config{}
}

func (c Config) Validate() error {
	if c.DialTimeout < 0 {
		return fmt.Errorf("scheduler: dial_timeout must be >= 0")
	}
	if c.KeepAlive < 0 {
		return fmt.Errorf("scheduler: keep_alive must be >= 0")
	}
	return nil
}
