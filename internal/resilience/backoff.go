package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes exponential retry delays with jitter. The zero value
// uses DefaultBackoff.
type Backoff struct {
	Initial time.Duration // delay before the first retry; default 50ms
	Max     time.Duration // cap; default 2s
	Factor  float64       // growth per retry; default 2
	Jitter  float64       // +/- fraction of the delay, 0 to 1
}

// DefaultBackoff returns delays sized for single-row store writes.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 50 * time.Millisecond,
		Max:     2 * time.Second,
		Factor:  2,
		Jitter:  0.25,
	}
}

// Delay returns the wait before retry n, counting from 1.
func (b Backoff) Delay(n int) time.Duration {
	if b.Initial <= 0 && b.Max <= 0 && b.Factor <= 0 {
		b = DefaultBackoff()
	}
	if b.Initial <= 0 {
		b.Initial = 50 * time.Millisecond
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Factor < 1 {
		b.Factor = 1
	}
	if n < 1 {
		n = 1
	}

	d := math.Min(float64(b.Initial)*math.Pow(b.Factor, float64(n-1)), float64(b.Max))
	if j := math.Min(math.Max(b.Jitter, 0), 1); j > 0 {
		d += d * j * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(0, d))
}
