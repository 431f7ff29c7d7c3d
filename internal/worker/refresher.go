package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/library-admin/internal/service/order"
	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
	"github.com/jwalitptl/library-admin/pkg/messaging"
)

type Refreshable interface {
	Refresh(ctx context.Context) error
}

type RefresherConfig struct {
	Channel string
	// InstanceID events published by this process are skipped
	InstanceID    string
	RetryAttempts int
	RetryDelay    time.Duration
}

// Refresher refreshes local views when another dashboard instance reports a
// transition on the broker.
type Refresher struct {
	broker  messaging.Broker
	targets func() []Refreshable
	config  RefresherConfig
	logger  *logger.Logger
}

func NewRefresher(broker messaging.Broker, targets func() []Refreshable, config RefresherConfig, log *logger.Logger) *Refresher {
	if config.Channel == "" {
		config.Channel = order.DefaultChannel
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Refresher{broker: broker, targets: targets, config: config, logger: log}
}

// Start blocks until ctx is done or the subscription ends.
func (r *Refresher) Start(ctx context.Context) error {
	msgs, err := r.broker.Subscribe(ctx, r.config.Channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.config.Channel, err)
	}

	r.logger.Info("Starting transition refresher", "channel", r.config.Channel)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Shutting down transition refresher")
			return nil
		case payload, ok := <-msgs:
			if !ok {
				return nil
			}
			r.handle(ctx, payload)
		}
	}
}

func (r *Refresher) handle(ctx context.Context, payload []byte) {
	var evt order.TransitionEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		r.logger.Error(err, "Failed to decode transition event")
		return
	}
	if evt.Source != "" && evt.Source == r.config.InstanceID {
		return
	}

	r.logger.Debug("Remote transition", "order_id", evt.OrderID, "kind", string(evt.Kind), "source", evt.Source)
	for _, t := range r.targets() {
		t := t
		err := retry(ctx, r.config.RetryAttempts, r.config.RetryDelay, func() error {
			return t.Refresh(ctx)
		})
		if err != nil {
			r.logger.Error(err, "Failed to refresh after remote transition", "order_id", evt.OrderID)
		}
	}
}

// retry runs fn until it succeeds, attempts run out or it fails with an
// error another attempt cannot fix.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !apperrors.IsTransient(err) {
			return err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
