package keepalive

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/withgalaxy/lazyload/pkg/config"
)

func TestNextBackoffDelay(t *testing.T) {
	cfg := config.BackoffConfig{
		InitialDelay: config.Duration{Duration: 100 * time.Millisecond},
		MaxDelay:     config.Duration{Duration: time.Second},
		Multiplier:   2,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, NextBackoffDelay(cfg, i+1, nil), "attempt %d", i+1)
	}
}

func TestNextBackoffDelayJitterStaysBounded(t *testing.T) {
	cfg := config.BackoffConfig{
		InitialDelay: config.Duration{Duration: time.Second},
		MaxDelay:     config.Duration{Duration: 4 * time.Second},
		Multiplier:   2,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(1))
	for attempt := 1; attempt <= 10; attempt++ {
		d := NextBackoffDelay(cfg, attempt, rng)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.Less(t, d, 6*time.Second)
	}
}

func TestNextBackoffDelayDegenerateConfig(t *testing.T) {
	assert.Equal(t, time.Duration(0), NextBackoffDelay(config.BackoffConfig{}, 3, nil))

	flat := config.BackoffConfig{InitialDelay: config.Duration{Duration: time.Second}, Multiplier: 0.1}
	assert.Equal(t, time.Second, NextBackoffDelay(flat, 5, nil))
}
