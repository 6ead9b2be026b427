package resilience

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
)

// State is a breaker position.
type State int

// Breaker states.
const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned while the breaker refuses writes.
var ErrOpen = eris.New("resilience: breaker open")

// BreakerConfig sizes a Breaker. Zero values select defaults.
type BreakerConfig struct {
	Threshold int           // consecutive failures that open the breaker; default 5
	Cooldown  time.Duration // time spent open before one probe is let through; default 30s
}

// Breaker stops calls to a failing store. After Cooldown a single probe is
// allowed; its outcome closes or reopens the breaker.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	clock     clockwork.Clock
	onChange  func(from, to State)

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed Breaker. clock and onChange may be nil.
func NewBreaker(cfg BreakerConfig, clock clockwork.Clock, onChange func(from, to State)) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Breaker{
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		clock:     clock,
		onChange:  onChange,
	}
}

// Allow reports whether a call may proceed. A caller that gets nil must
// report the outcome with Record.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.clock.Since(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.setState(HalfOpen)
		b.probing = true
		return nil
	default: // HalfOpen
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	}
}

// Record reports the outcome of an allowed call.
func (b *Breaker) Record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if !failed {
		b.failures = 0
		if b.state != Closed {
			b.setState(Closed)
		}
		return
	}

	b.failures++
	if b.state == HalfOpen || b.failures >= b.threshold {
		b.openedAt = b.clock.Now()
		if b.state != Open {
			b.setState(Open)
		}
	}
}

// release gives back an allowed call whose outcome says nothing about the
// store (the caller's context ended).
func (b *Breaker) release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current run of consecutive failures.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) setState(to State) {
	from := b.state
	b.state = to
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
