package link

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// backoff spaces out ring link dial retries. One instance is shared by every
// handler a Factory builds.
type backoff struct {
	cfg BackoffConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func newBackoff(cfg BackoffConfig, seed int64) *backoff {
	return &backoff{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// delay returns the pause after failed attempt n (1-based): InitialDelay
// grown by Multiplier per attempt, capped at MaxDelay, then scaled into
// [0.5, 1.5) when Jitter is set.
func (b *backoff) delay(attempt int) time.Duration {
	if b.cfg.InitialDelay <= 0 {
		return 0
	}
	d := float64(b.cfg.InitialDelay)
	if attempt > 1 {
		d *= math.Pow(max(b.cfg.Multiplier, 1), float64(attempt-1))
	}
	if b.cfg.MaxDelay > 0 {
		d = min(d, float64(b.cfg.MaxDelay))
	}
	d = min(d, float64(math.MaxInt64/2))
	if b.cfg.Jitter {
		b.mu.Lock()
		d *= 0.5 + b.rng.Float64()
		b.mu.Unlock()
	}
	return time.Duration(d)
}

// wait sleeps for delay(attempt) unless ctx ends first.
func (b *backoff) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
