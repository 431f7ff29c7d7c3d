package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	errClient := errors.New("bad request")
	cb := NewCircuitBreaker(Settings{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, errClient) },
	})

	assert.ErrorIs(t, cb.Execute(func() error { return errClient }), errClient)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker(Settings{
		MaxFailures: 1,
		Timeout:     time.Second,
		OnStateChange: func(_ string, _, to State) {
			transitions = append(transitions, to)
		},
	})
	now := time.Now()
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}
