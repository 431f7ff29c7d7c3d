package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
	"github.com/jwalitptl/library-admin/pkg/metrics"
)

var ErrPollerClosed = errors.New("poller is closed")

// Tick is one poll; it should return once ctx is done.
type Tick func(ctx context.Context) error

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Poller runs at most one ticker loop per key. Subscribing again under the
// same key replaces the previous loop, which is fully stopped first.
type Poller struct {
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
}

func NewPoller(log *logger.Logger, m *metrics.Metrics) *Poller {
	if log == nil {
		log = logger.Nop()
	}
	return &Poller{logger: log, metrics: m, subs: make(map[string]*subscription)}
}

// Subscribe runs fn immediately and then every interval until ctx is done,
// Stop(key) is called, or fn reports a missing session or permission. A
// non-positive interval runs fn once. The returned func stops this
// subscription and leaves a later one under the same key alone.
func (p *Poller) Subscribe(ctx context.Context, key string, interval time.Duration, fn Tick) (func(), error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPollerClosed
	}
	prev := p.subs[key]
	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	p.subs[key] = sub
	p.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	go p.run(ctx, key, interval, fn, sub)
	return func() {
		sub.cancel()
		<-sub.done
	}, nil
}

func (p *Poller) run(ctx context.Context, key string, interval time.Duration, fn Tick, sub *subscription) {
	defer func() {
		sub.cancel()
		p.mu.Lock()
		if p.subs[key] == sub {
			delete(p.subs, key)
		}
		p.mu.Unlock()
		close(sub.done)
	}()

	log := p.logger.With("poll_key", key)
	log.Debug("Starting poller", "interval", interval.String())

	if !p.tick(ctx, log, key, fn) || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Shutting down poller")
			return
		case <-ticker.C:
			if !p.tick(ctx, log, key, fn) {
				return
			}
		}
	}
}

// tick reports whether polling should go on.
func (p *Poller) tick(ctx context.Context, log *logger.Logger, key string, fn Tick) bool {
	err := fn(ctx)
	switch {
	case err == nil:
		p.record(key, "success")
		return true
	case ctx.Err() != nil:
		p.record(key, "canceled")
		return false
	case errors.Is(err, apperrors.ErrAuthMissing), errors.Is(err, apperrors.ErrPermissionUnresolved):
		p.record(key, "stopped")
		log.Warn("Stopping poller", "error", err.Error())
		return false
	default:
		// Log error but continue
		p.record(key, "error")
		log.Error(err, "Poll failed")
		return true
	}
}

func (p *Poller) record(key, result string) {
	if p.metrics != nil {
		p.metrics.Polls.WithLabelValues(key, result).Inc()
	}
}

// Stop ends the loop for key and waits for it to exit.
func (p *Poller) Stop(key string) {
	p.mu.Lock()
	sub := p.subs[key]
	delete(p.subs, key)
	p.mu.Unlock()

	if sub != nil {
		sub.cancel()
		<-sub.done
	}
}

func (p *Poller) Active(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.subs[key]
	return ok
}

// Close stops every loop and refuses new subscriptions.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	subs := p.subs
	p.subs = make(map[string]*subscription)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}
}
