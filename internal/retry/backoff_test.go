package retry

import (
	"math/rand"
	"testing"
	"time"
)

func TestDelay_Bounds(t *testing.T) {
	cfg := DefaultConfig()
	rnd := rand.New(rand.NewSource(1))

	for attempt := 0; attempt < 10; attempt++ {
		for i := 0; i < 200; i++ {
			d := Delay(cfg, attempt, ClassNetwork, rnd)
			ceiling := time.Duration(float64(cfg.MaxDelay) * 1.25)
			if d > ceiling {
				t.Fatalf("attempt %d: delay %v exceeds ceiling %v", attempt, d, ceiling)
			}
			if d < 0 {
				t.Fatalf("attempt %d: negative delay %v", attempt, d)
			}
		}
	}
}

func TestDelay_ExponentialGrowth(t *testing.T) {
	cfg := Config{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Hour, Multiplier: 2}
	rnd := rand.New(rand.NewSource(7))

	// With ±25% jitter, attempt n is in [0.75, 1.25) * 2^n seconds, so
	// consecutive windows never overlap at multiplier 2.
	for attempt := 0; attempt < 5; attempt++ {
		base := time.Duration(float64(time.Second) * float64(int(1)<<attempt))
		d := Delay(cfg, attempt, ClassNetwork, rnd)
		lo := time.Duration(float64(base) * 0.75)
		hi := time.Duration(float64(base) * 1.25)
		if d < lo || d > hi {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, d, lo, hi)
		}
	}
}

func TestDelay_CapsAtMaxDelay(t *testing.T) {
	cfg := DefaultConfig()
	rnd := rand.New(rand.NewSource(3))

	// Attempt 10 at multiplier 2 is way past MaxDelay; the base must be
	// capped before jitter.
	for i := 0; i < 100; i++ {
		d := Delay(cfg, 10, ClassNetwork, rnd)
		if d > time.Duration(float64(cfg.MaxDelay)*1.25) {
			t.Fatalf("delay %v not capped", d)
		}
	}
}

func TestDelay_RateLimitFloor(t *testing.T) {
	cfg := DefaultConfig()
	rnd := rand.New(rand.NewSource(9))

	for attempt := 0; attempt < 4; attempt++ {
		if d := Delay(cfg, attempt, ClassRateLimit, rnd); d < 60*time.Second {
			t.Errorf("attempt %d: rate-limit delay %v below 60s floor", attempt, d)
		}
	}
}

func TestDelay_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	a := rand.New(rand.NewSource(42))
	b := rand.New(rand.NewSource(42))

	for attempt := 0; attempt < 4; attempt++ {
		if da, db := Delay(cfg, attempt, ClassNetwork, a), Delay(cfg, attempt, ClassNetwork, b); da != db {
			t.Errorf("attempt %d: same seed gave %v and %v", attempt, da, db)
		}
	}
}
