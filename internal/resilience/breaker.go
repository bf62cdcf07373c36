package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is the breaker position.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets one probe call through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected without reaching
// the provider. It is deliberately not retryable.
var ErrBreakerOpen = eris.New("provider breaker open")

// BreakerConfig controls when a Breaker opens and recovers.
type BreakerConfig struct {
	// TripAfter is the run of consecutive retryable failures that opens
	// the breaker.
	TripAfter int

	// Cooldown is how long the breaker stays open before allowing a
	// probe call.
	Cooldown time.Duration

	// Trips decides whether a failure counts toward TripAfter. Nil
	// means IsRetryable, so a prospect that legitimately isn't found
	// never opens the breaker.
	Trips func(err error) bool

	// OnStateChange observes transitions.
	OnStateChange func(from, to State)
}

// DefaultBreakerConfig returns the bounds used for provider breakers.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		TripAfter: 5,
		Cooldown:  30 * time.Second,
	}
}

// Breaker tracks the recent health of one provider. After TripAfter
// consecutive retryable failures it rejects calls for Cooldown, then
// admits a single probe: a probe success closes the breaker, a probe
// failure reopens it.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	d := DefaultBreakerConfig()
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = d.TripAfter
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = d.Cooldown
	}
	return &Breaker{cfg: cfg, state: StateClosed, now: time.Now}
}

// Call runs fn unless the breaker is open.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := CallVal(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// CallVal is Call for functions that return a value.
func CallVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.admit() {
		return zero, ErrBreakerOpen
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the breaker position, accounting for an elapsed
// cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shift(StateClosed)
	b.failures = 0
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false
		}
		b.shift(StateHalfOpen)
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trips := b.cfg.Trips
	if trips == nil {
		trips = IsRetryable
	}

	if err == nil || !trips(err) {
		if b.state == StateHalfOpen {
			b.shift(StateClosed)
		}
		b.failures = 0
		return
	}

	b.failures++
	b.openedAt = b.now()
	if b.state == StateHalfOpen || b.failures >= b.cfg.TripAfter {
		b.shift(StateOpen)
	}
}

func (b *Breaker) shift(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// BreakerSet holds one breaker per provider, created on first use.
type BreakerSet struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*Breaker
}

// NewBreakerSet creates an empty set that stamps out breakers with cfg.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	return &BreakerSet{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for provider, creating it if needed.
func (s *BreakerSet) Get(provider string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[provider]
	if !ok {
		b = NewBreaker(s.cfg)
		s.breakers[provider] = b
	}
	return b
}

// Snapshot reports the state of every breaker created so far.
func (s *BreakerSet) Snapshot() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]State, len(s.breakers))
	for name, b := range s.breakers {
		out[name] = b.State()
	}
	return out
}
