package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without calling fn while the breaker is open
var ErrOpen = errors.New("circuit breaker is open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type Settings struct {
	Name string
	// MaxFailures consecutive failures open the breaker
	MaxFailures int
	// Timeout is how long the breaker stays open before a trial call
	Timeout time.Duration
	// IsFailure decides whether an error counts against the breaker.
	// Nil counts every non-nil error.
	IsFailure     func(err error) bool
	OnStateChange func(name string, from, to State)
}

type CircuitBreaker struct {
	name          string
	maxFailures   int
	timeout       time.Duration
	isFailure     func(err error) bool
	onStateChange func(name string, from, to State)

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       State
	now         func() time.Time
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	isFailure := settings.IsFailure
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		name:          settings.Name,
		maxFailures:   settings.MaxFailures,
		timeout:       settings.Timeout,
		isFailure:     isFailure,
		onStateChange: settings.OnStateChange,
		state:         StateClosed,
		now:           time.Now,
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) <= cb.timeout {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.setState(StateHalfOpen)
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && cb.isFailure(err) {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.setState(StateOpen)
		}
		return err
	}

	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
	}
	cb.failures = 0
	return err
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}
