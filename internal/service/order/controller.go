package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/library-admin/internal/model"
	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
	"github.com/jwalitptl/library-admin/pkg/messaging"
	"github.com/jwalitptl/library-admin/pkg/metrics"
)

// DefaultConfirmDelay is the minimum time a confirm takes to report back,
// so the UI spinner has a consistent duration.
const DefaultConfirmDelay = 2000 * time.Millisecond

// DefaultChannel carries TransitionEvents between dashboard instances.
const DefaultChannel = "library.orders.transitions"

// ErrClosed is returned once the controller has been closed.
var ErrClosed = errors.New("order controller is closed")

// API is the part of the Library API the controller drives.
type API interface {
	ListOrders(ctx context.Context, permission string) ([]model.Order, error)
	ReadyOrder(ctx context.Context, permission string, id int64) error
	RejectOrder(ctx context.Context, permission string, id int64) error
	DeleteOrder(ctx context.Context, permission string, id int64) error
	CheckOrder(ctx context.Context, permission string, id int64, bookCode string) error
	ReturnCheck(ctx context.Context, permission string, id int64, bookCode string) error
}

// CancelMode selects the endpoint used to cancel a requested order.
type CancelMode string

const (
	CancelReject CancelMode = "reject"
	CancelDelete CancelMode = "delete"
)

type Options struct {
	// ConfirmDelay zero means DefaultConfirmDelay; negative disables it
	ConfirmDelay time.Duration
	CancelMode   CancelMode
	Notifier     Notifier
	Publisher    messaging.Publisher
	Channel      string
	// InstanceID tags published events so an instance can skip its own
	InstanceID string
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

// TransitionEvent is published after every successful transition.
type TransitionEvent struct {
	OrderID    int64             `json:"order_id"`
	Kind       Kind              `json:"kind"`
	FromStatus model.OrderStatus `json:"from_status"`
	View       string            `json:"view"`
	Source     string            `json:"source"`
	At         time.Time         `json:"at"`
}

// Pending identifies one in-flight transition.
type Pending struct {
	OrderID int64 `json:"order_id"`
	Kind    Kind  `json:"kind"`
}

// Row is one order as the UI renders it.
type Row struct {
	Order   model.Order `json:"order"`
	Actions []Kind      `json:"actions"`
	Pending []Kind      `json:"pending"`
}

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	View     string    `json:"view"`
	Orders   []Row     `json:"orders"`
	Pending  []Pending `json:"pending"`
	SyncedAt time.Time `json:"synced_at"`
}

// Controller owns the working list of one view and mediates transitions of
// the orders in it. Each (order, kind) pair has at most one transition in
// flight; different orders never wait on each other.
type Controller struct {
	api     API
	code    string
	view    View
	opts    Options
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	orders   []model.Order
	pending  map[Pending]struct{}
	seq      uint64
	syncedAt time.Time
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController builds a controller for view acting with permission code.
// An empty code yields a controller that refuses every call locally.
func NewController(api API, code string, view View, opts Options) *Controller {
	if opts.ConfirmDelay == 0 {
		opts.ConfirmDelay = DefaultConfirmDelay
	}
	if opts.CancelMode == "" {
		opts.CancelMode = CancelReject
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Publisher == nil {
		opts.Publisher = messaging.NopPublisher{}
	}
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		api:     api,
		code:    code,
		view:    view,
		opts:    opts,
		logger:  log.With("view", view.Name),
		metrics: opts.Metrics,
		pending: make(map[Pending]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *Controller) View() View {
	return c.view
}

func (c *Controller) PermissionCode() string {
	return c.code
}

// Refresh replaces the working list with the server's, filtered by the
// view. A response is dropped when a later fetch or a transition happened
// meanwhile, or when the controller was closed.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.code == "" {
		c.mu.Unlock()
		return apperrors.PermissionUnresolved("no permission code for orders")
	}
	c.seq++
	ticket := c.seq
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	orders, err := c.api.ListOrders(ctx, c.code)
	if err != nil {
		return fmt.Errorf("failed to fetch orders: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || ticket != c.seq {
		c.logger.Debug("dropping stale order list", "ticket", ticket, "current", c.seq)
		return nil
	}
	c.orders = c.view.Filter(orders)
	c.syncedAt = time.Now()
	c.observeSizeLocked()
	return nil
}

func (c *Controller) Confirm(ctx context.Context, id int64) error {
	return c.transition(ctx, id, KindConfirm, "", func(ctx context.Context) error {
		return c.withMinimumDelay(ctx, func(ctx context.Context) error {
			return c.api.ReadyOrder(ctx, c.code, id)
		})
	})
}

func (c *Controller) Cancel(ctx context.Context, id int64) error {
	return c.transition(ctx, id, KindCancel, "", func(ctx context.Context) error {
		if c.opts.CancelMode == CancelDelete {
			return c.api.DeleteOrder(ctx, c.code, id)
		}
		return c.api.RejectOrder(ctx, c.code, id)
	})
}

func (c *Controller) Checkout(ctx context.Context, id int64, bookCode string) error {
	code := strings.TrimSpace(bookCode)
	return c.transition(ctx, id, KindCheckout, code, func(ctx context.Context) error {
		return c.api.CheckOrder(ctx, c.code, id, code)
	})
}

func (c *Controller) AcceptReturn(ctx context.Context, id int64, bookCode string) error {
	code := strings.TrimSpace(bookCode)
	return c.transition(ctx, id, KindAcceptReturn, code, func(ctx context.Context) error {
		return c.api.ReturnCheck(ctx, c.code, id, code)
	})
}

// Do dispatches kind, for callers holding the kind as data.
func (c *Controller) Do(ctx context.Context, id int64, kind Kind, bookCode string) error {
	switch kind {
	case KindConfirm:
		return c.Confirm(ctx, id)
	case KindCancel:
		return c.Cancel(ctx, id)
	case KindCheckout:
		return c.Checkout(ctx, id, bookCode)
	case KindAcceptReturn:
		return c.AcceptReturn(ctx, id, bookCode)
	}
	return apperrors.TransitionPrecondition(fmt.Sprintf("unknown transition %q", kind))
}

func (c *Controller) transition(ctx context.Context, id int64, kind Kind, bookCode string, call func(context.Context) error) error {
	o, err := c.begin(id, kind, bookCode)
	if err != nil {
		c.record(kind, "refused")
		c.failed(id, kind, err)
		return err
	}
	defer c.end(id, kind)

	if err := call(ctx); err != nil {
		c.record(kind, "failed")
		c.failed(id, kind, err)
		return err
	}

	c.record(kind, "success")
	c.succeeded(o, kind)
	return nil
}

// begin checks the preconditions and sets the pending marker.
func (c *Controller) begin(id int64, kind Kind, bookCode string) (model.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return model.Order{}, apperrors.Canceled(ErrClosed)
	}
	if c.code == "" {
		return model.Order{}, apperrors.PermissionUnresolved("no permission code for orders")
	}
	idx := c.indexLocked(id)
	if idx < 0 {
		return model.Order{}, apperrors.TransitionPrecondition(fmt.Sprintf("order %d is not in the %s list", id, c.view.Name))
	}
	o := c.orders[idx]
	if !CanTransition(o.StatusID, kind) {
		return model.Order{}, apperrors.TransitionPrecondition(
			fmt.Sprintf("cannot %s order %d while it is %s", kind, id, o.StatusID))
	}
	if kind.NeedsBookCode() && bookCode == "" {
		return model.Order{}, apperrors.TransitionPrecondition("book code is required")
	}

	key := Pending{OrderID: id, Kind: kind}
	if _, busy := c.pending[key]; busy {
		return model.Order{}, apperrors.TransitionConflict(fmt.Sprintf("%s is already in progress for order %d", kind, id))
	}
	c.pending[key] = struct{}{}
	if c.metrics != nil {
		c.metrics.PendingTransitions.Inc()
	}
	return o, nil
}

func (c *Controller) end(id int64, kind Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, Pending{OrderID: id, Kind: kind})
	if c.metrics != nil {
		c.metrics.PendingTransitions.Dec()
	}
}

func (c *Controller) succeeded(o model.Order, kind Kind) {
	c.mu.Lock()
	if idx := c.indexLocked(o.ID); idx >= 0 {
		c.orders = append(c.orders[:idx:idx], c.orders[idx+1:]...)
	}
	// fetches started before this point may still list the order
	c.seq++
	c.observeSizeLocked()
	reconcile := !c.closed
	if reconcile {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	c.logger.Info("order transition succeeded", "order_id", o.ID, "kind", string(kind))
	c.opts.Notifier.Notify(Notification{
		Level:   LevelSuccess,
		OrderID: o.ID,
		Kind:    kind,
		Message: successMessage(kind),
		At:      time.Now(),
	})
	c.publish(o, kind)

	if reconcile {
		go func() {
			defer c.wg.Done()
			if err := c.Refresh(c.ctx); err != nil && !errors.Is(err, ErrClosed) {
				c.logger.Error(err, "reconciling refresh failed", "order_id", o.ID)
			}
		}()
	}
}

func (c *Controller) failed(id int64, kind Kind, err error) {
	level := LevelError
	switch apperrors.KindOf(err) {
	case apperrors.KindTransitionPrecondition, apperrors.KindTransitionConflict:
		level = LevelWarning
		c.logger.Debug("order transition refused", "order_id", id, "kind", string(kind), "error", err.Error())
	default:
		c.logger.Error(err, "order transition failed", "order_id", id, "kind", string(kind))
	}
	c.opts.Notifier.Notify(Notification{
		Level:   level,
		OrderID: id,
		Kind:    kind,
		Message: apperrors.UserMessage(err, ""),
		At:      time.Now(),
	})
}

func (c *Controller) publish(o model.Order, kind Kind) {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()

	evt := TransitionEvent{
		OrderID:    o.ID,
		Kind:       kind,
		FromStatus: o.StatusID,
		View:       c.view.Name,
		Source:     c.opts.InstanceID,
		At:         time.Now().UTC(),
	}
	if err := c.opts.Publisher.Publish(ctx, c.opts.Channel, evt); err != nil {
		c.logger.Error(err, "failed to publish transition event", "order_id", o.ID)
	}
}

// withMinimumDelay runs call and a timer together and returns when both are
// done. Only call can fail; a canceled ctx just ends the wait early.
func (c *Controller) withMinimumDelay(ctx context.Context, call func(context.Context) error) error {
	if c.opts.ConfirmDelay <= 0 {
		return call(ctx)
	}

	var g errgroup.Group
	g.Go(func() error {
		return call(ctx)
	})
	g.Go(func() error {
		timer := time.NewTimer(c.opts.ConfirmDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		return nil
	})
	return g.Wait()
}

func (c *Controller) record(kind Kind, result string) {
	if c.metrics != nil {
		c.metrics.Transitions.WithLabelValues(string(kind), result).Inc()
	}
}

func (c *Controller) observeSizeLocked() {
	if c.metrics != nil {
		c.metrics.OrdersInView.WithLabelValues(c.view.Name).Set(float64(len(c.orders)))
	}
}

func (c *Controller) indexLocked(id int64) int {
	for i, o := range c.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// Orders returns a copy of the working list.
func (c *Controller) Orders() []model.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Order, len(c.orders))
	copy(out, c.orders)
	return out
}

func (c *Controller) IsPending(id int64, kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[Pending{OrderID: id, Kind: kind}]
	return ok
}

// Pending lists the transitions in flight ordered by order id then kind.
func (c *Controller) Pending() []Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *Controller) pendingLocked() []Pending {
	out := make([]Pending, 0, len(c.pending))
	for p := range c.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.pendingLocked()
	byOrder := make(map[int64][]Kind, len(pending))
	for _, p := range pending {
		byOrder[p.OrderID] = append(byOrder[p.OrderID], p.Kind)
	}

	rows := make([]Row, 0, len(c.orders))
	for _, o := range c.orders {
		kinds := byOrder[o.ID]
		if kinds == nil {
			kinds = []Kind{}
		}
		rows = append(rows, Row{Order: o, Actions: Actions(o.StatusID), Pending: kinds})
	}
	return Snapshot{View: c.view.Name, Orders: rows, Pending: pending, SyncedAt: c.syncedAt}
}

// Close stops accepting work, cancels in-flight fetches and waits for
// reconciling refreshes to exit. Later responses never touch the list.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
