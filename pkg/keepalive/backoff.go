package keepalive

import (
	"math"
	"math/rand"
	"time"

	"github.com/withgalaxy/lazyload/pkg/config"
)

// NextBackoffDelay returns the reconnect delay for attempt N (1-based):
// InitialDelay * Multiplier^(N-1), capped at MaxDelay, optionally scaled by a
// jitter factor in [0.5, 1.5).
func NextBackoffDelay(cfg config.BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	initial := cfg.InitialDelay.Duration
	if initial <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(initial) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if maxDelay := cfg.MaxDelay.Duration; maxDelay > 0 && delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}
