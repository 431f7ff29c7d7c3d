package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/library-admin/internal/model"
	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListOrders(ctx context.Context, permission string) ([]model.Order, error) {
	args := m.Called(ctx, permission)
	if v := args.Get(0); v != nil {
		return v.([]model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) ReadyOrder(ctx context.Context, permission string, id int64) error {
	return m.Called(ctx, permission, id).Error(0)
}

func (m *mockAPI) RejectOrder(ctx context.Context, permission string, id int64) error {
	return m.Called(ctx, permission, id).Error(0)
}

func (m *mockAPI) DeleteOrder(ctx context.Context, permission string, id int64) error {
	return m.Called(ctx, permission, id).Error(0)
}

func (m *mockAPI) CheckOrder(ctx context.Context, permission string, id int64, bookCode string) error {
	return m.Called(ctx, permission, id, bookCode).Error(0)
}

func (m *mockAPI) ReturnCheck(ctx context.Context, permission string, id int64, bookCode string) error {
	return m.Called(ctx, permission, id, bookCode).Error(0)
}

type recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

func orders(statuses map[int64]model.OrderStatus, ids ...int64) []model.Order {
	out := make([]model.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Order{ID: id, StatusID: statuses[id]})
	}
	return out
}

const testCode = "kutubxonachi"

func newLoaded(t *testing.T, api *mockAPI, view View, list []model.Order, opts Options) *Controller {
	t.Helper()
	if opts.ConfirmDelay == 0 {
		opts.ConfirmDelay = -1
	}
	api.On("ListOrders", mock.Anything, testCode).Return(list, nil).Once()
	c := NewController(api, testCode, view, opts)
	t.Cleanup(c.Close)
	require.NoError(t, c.Refresh(context.Background()))
	return c
}

// serverThen sets what later fetches, such as reconciling refreshes, return.
func serverThen(api *mockAPI, list []model.Order) {
	api.On("ListOrders", mock.Anything, testCode).Return(list, nil)
}

func ids(list []model.Order) []int64 {
	out := make([]int64, 0, len(list))
	for _, o := range list {
		out = append(out, o.ID)
	}
	return out
}

func TestController_RefreshFiltersByView(t *testing.T) {
	api := new(mockAPI)
	st := map[int64]model.OrderStatus{1: model.StatusRequested, 2: model.StatusReady, 3: model.StatusArchived}
	c := newLoaded(t, api, ViewNew, orders(st, 1, 2, 3), Options{})

	assert.Equal(t, []int64{1}, ids(c.Orders()))
	assert.False(t, c.Snapshot().SyncedAt.IsZero())
}

func TestController_RefreshWithoutCode(t *testing.T) {
	api := new(mockAPI)
	c := NewController(api, "", ViewActive, Options{})
	defer c.Close()

	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrPermissionUnresolved)
	api.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything)

	err = c.Confirm(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrPermissionUnresolved)
	api.AssertNotCalled(t, "ReadyOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_Transitions(t *testing.T) {
	st := map[int64]model.OrderStatus{
		1: model.StatusRequested,
		2: model.StatusReady,
		3: model.StatusCheckedOut,
		4: model.StatusReturnDue,
	}

	tests := []struct {
		name  string
		id    int64
		setup func(api *mockAPI)
		run   func(c *Controller) error
	}{
		{"confirm", 1, func(api *mockAPI) {
			api.On("ReadyOrder", mock.Anything, testCode, int64(1)).Return(nil)
		}, func(c *Controller) error { return c.Confirm(context.Background(), 1) }},
		{"cancel", 1, func(api *mockAPI) {
			api.On("RejectOrder", mock.Anything, testCode, int64(1)).Return(nil)
		}, func(c *Controller) error { return c.Cancel(context.Background(), 1) }},
		{"checkout", 2, func(api *mockAPI) {
			api.On("CheckOrder", mock.Anything, testCode, int64(2), "BK-1").Return(nil)
		}, func(c *Controller) error { return c.Checkout(context.Background(), 2, " BK-1 ") }},
		{"accept return from checked out", 3, func(api *mockAPI) {
			api.On("ReturnCheck", mock.Anything, testCode, int64(3), "BK-3").Return(nil)
		}, func(c *Controller) error { return c.AcceptReturn(context.Background(), 3, "BK-3") }},
		{"accept return from return due", 4, func(api *mockAPI) {
			api.On("ReturnCheck", mock.Anything, testCode, int64(4), "BK-4").Return(nil)
		}, func(c *Controller) error { return c.AcceptReturn(context.Background(), 4, "BK-4") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(mockAPI)
			tt.setup(api)
			rec := &recorder{}
			c := newLoaded(t, api, ViewActive, orders(st, 1, 2, 3, 4), Options{Notifier: rec})
			var rest []int64
			for _, id := range []int64{1, 2, 3, 4} {
				if id != tt.id {
					rest = append(rest, id)
				}
			}
			serverThen(api, orders(st, rest...))

			require.NoError(t, tt.run(c))

			assert.NotContains(t, ids(c.Orders()), tt.id)
			assert.Empty(t, c.Pending())
			notes := rec.all()
			require.Len(t, notes, 1)
			assert.Equal(t, LevelSuccess, notes[0].Level)
			assert.Equal(t, tt.id, notes[0].OrderID)
		})
	}
}

func TestController_CancelDeleteMode(t *testing.T) {
	api := new(mockAPI)
	api.On("DeleteOrder", mock.Anything, testCode, int64(1)).Return(nil)
	st := map[int64]model.OrderStatus{1: model.StatusRequested}
	c := newLoaded(t, api, ViewNew, orders(st, 1), Options{CancelMode: CancelDelete})
	serverThen(api, orders(st))

	require.NoError(t, c.Cancel(context.Background(), 1))
	api.AssertNotCalled(t, "RejectOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_PreconditionsRefusedLocally(t *testing.T) {
	st := map[int64]model.OrderStatus{
		1: model.StatusRequested,
		2: model.StatusReady,
		5: model.StatusReturnPending,
		7: model.StatusOverdue,
	}

	tests := []struct {
		name string
		run  func(c *Controller) error
	}{
		{"confirm a ready order", func(c *Controller) error { return c.Confirm(context.Background(), 2) }},
		{"checkout a requested order", func(c *Controller) error { return c.Checkout(context.Background(), 1, "BK") }},
		{"checkout without book code", func(c *Controller) error { return c.Checkout(context.Background(), 2, "   ") }},
		{"return from pending return", func(c *Controller) error { return c.AcceptReturn(context.Background(), 5, "BK") }},
		{"cancel an overdue order", func(c *Controller) error { return c.Cancel(context.Background(), 7) }},
		{"unknown order", func(c *Controller) error { return c.Confirm(context.Background(), 99) }},
		{"unknown kind", func(c *Controller) error { return c.Do(context.Background(), 1, Kind("burn"), "") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(mockAPI)
			rec := &recorder{}
			c := newLoaded(t, api, ViewActive, orders(st, 1, 2, 5, 7), Options{Notifier: rec})

			err := tt.run(c)

			assert.ErrorIs(t, err, apperrors.ErrTransitionPrecondition)
			assert.Len(t, c.Orders(), 4)
			api.AssertNumberOfCalls(t, "ListOrders", 1)
			api.AssertNotCalled(t, "ReadyOrder", mock.Anything, mock.Anything, mock.Anything)
			api.AssertNotCalled(t, "CheckOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			api.AssertNotCalled(t, "ReturnCheck", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			api.AssertNotCalled(t, "RejectOrder", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestController_FailureKeepsList(t *testing.T) {
	api := new(mockAPI)
	api.On("CheckOrder", mock.Anything, testCode, int64(2), "WRONG").
		Return(apperrors.RemoteRejected(400, "Kitob kodi noto'g'ri"))
	st := map[int64]model.OrderStatus{2: model.StatusReady}
	rec := &recorder{}
	c := newLoaded(t, api, ViewActive, orders(st, 2), Options{Notifier: rec})

	err := c.Checkout(context.Background(), 2, "WRONG")

	assert.ErrorIs(t, err, apperrors.ErrRemoteRejected)
	assert.Equal(t, []int64{2}, ids(c.Orders()))
	assert.False(t, c.IsPending(2, KindCheckout))
	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelError, notes[0].Level)
	assert.Equal(t, "Kitob kodi noto'g'ri", notes[0].Message)
}

func TestController_ConcurrentSameTransitionConflicts(t *testing.T) {
	api := new(mockAPI)
	release := make(chan struct{})
	started := make(chan struct{})
	api.On("RejectOrder", mock.Anything, testCode, int64(1)).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()
	st := map[int64]model.OrderStatus{1: model.StatusRequested, 2: model.StatusRequested}
	api.On("RejectOrder", mock.Anything, testCode, int64(2)).Return(nil)
	c := newLoaded(t, api, ViewNew, orders(st, 1, 2), Options{})
	serverThen(api, orders(st, 1))

	errc := make(chan error, 1)
	go func() { errc <- c.Cancel(context.Background(), 1) }()
	<-started

	assert.True(t, c.IsPending(1, KindCancel))
	err := c.Cancel(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrTransitionConflict)

	// other orders are not blocked
	require.NoError(t, c.Cancel(context.Background(), 2))

	snap := c.Snapshot()
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, []Kind{KindCancel}, snap.Orders[0].Pending)

	close(release)
	require.NoError(t, <-errc)
	assert.Empty(t, c.Pending())
	api.AssertNumberOfCalls(t, "RejectOrder", 2)
}

func TestController_StaleFetchDropped(t *testing.T) {
	api := new(mockAPI)
	st := map[int64]model.OrderStatus{1: model.StatusRequested, 2: model.StatusRequested}
	c := newLoaded(t, api, ViewNew, orders(st, 1, 2), Options{})

	// a slow fetch that still lists order 1
	release := make(chan struct{})
	fetching := make(chan struct{})
	api.ExpectedCalls = nil
	api.On("ListOrders", mock.Anything, testCode).Run(func(mock.Arguments) {
		close(fetching)
		<-release
	}).Return(orders(st, 1, 2), nil).Once()
	api.On("ListOrders", mock.Anything, testCode).Return(orders(st, 2), nil)
	api.On("ReadyOrder", mock.Anything, testCode, int64(1)).Return(nil)

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()
	<-fetching

	require.NoError(t, c.Confirm(context.Background(), 1))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []int64{2}, ids(c.Orders()))
}

func TestController_ReconcileRestoresServerView(t *testing.T) {
	api := new(mockAPI)
	api.On("ReadyOrder", mock.Anything, testCode, int64(1)).Return(nil)
	st := map[int64]model.OrderStatus{1: model.StatusRequested, 2: model.StatusRequested}
	c := newLoaded(t, api, ViewNew, orders(st, 1, 2), Options{})
	// the server has not applied the change yet and still lists order 1
	serverThen(api, orders(st, 1, 2))

	require.NoError(t, c.Confirm(context.Background(), 1))

	assert.Eventually(t, func() bool {
		got := ids(c.Orders())
		return len(got) == 2 && got[0] == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, c.IsPending(1, KindConfirm))
}

func TestNewController_DefaultConfirmDelay(t *testing.T) {
	assert.Equal(t, 2000*time.Millisecond, DefaultConfirmDelay)

	c := NewController(new(mockAPI), testCode, ViewNew, Options{})
	defer c.Close()
	assert.Equal(t, DefaultConfirmDelay, c.opts.ConfirmDelay)

	off := NewController(new(mockAPI), testCode, ViewNew, Options{ConfirmDelay: -1})
	defer off.Close()
	assert.Negative(t, int64(off.opts.ConfirmDelay))
}

func TestController_ConfirmWaitsMinimumDelay(t *testing.T) {
	api := new(mockAPI)
	api.On("ReadyOrder", mock.Anything, testCode, int64(1)).Return(nil)
	st := map[int64]model.OrderStatus{1: model.StatusRequested}
	c := newLoaded(t, api, ViewNew, orders(st, 1), Options{ConfirmDelay: 50 * time.Millisecond})
	serverThen(api, orders(st))

	start := time.Now()
	require.NoError(t, c.Confirm(context.Background(), 1))

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	api.AssertCalled(t, "ReadyOrder", mock.Anything, testCode, int64(1))
}

func TestController_ConfirmFailureStillReported(t *testing.T) {
	api := new(mockAPI)
	api.On("ReadyOrder", mock.Anything, testCode, int64(1)).Return(apperrors.NetworkFailure(assert.AnError))
	st := map[int64]model.OrderStatus{1: model.StatusRequested}
	c := newLoaded(t, api, ViewNew, orders(st, 1), Options{ConfirmDelay: 10 * time.Millisecond})

	err := c.Confirm(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrNetworkFailure)
	assert.Len(t, c.Orders(), 1)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []TransitionEvent
}

func (p *capturePublisher) Publish(_ context.Context, _ string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, message.(TransitionEvent))
	return nil
}

func TestController_PublishesTransition(t *testing.T) {
	api := new(mockAPI)
	api.On("ReadyOrder", mock.Anything, testCode, int64(1)).Return(nil)
	st := map[int64]model.OrderStatus{1: model.StatusRequested}
	pub := &capturePublisher{}
	c := newLoaded(t, api, ViewNew, orders(st, 1), Options{Publisher: pub, InstanceID: "dash-1"})
	serverThen(api, orders(st))

	require.NoError(t, c.Confirm(context.Background(), 1))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 1)
	assert.Equal(t, int64(1), pub.events[0].OrderID)
	assert.Equal(t, KindConfirm, pub.events[0].Kind)
	assert.Equal(t, model.StatusRequested, pub.events[0].FromStatus)
	assert.Equal(t, "dash-1", pub.events[0].Source)
}

func TestController_Close(t *testing.T) {
	api := new(mockAPI)
	st := map[int64]model.OrderStatus{1: model.StatusRequested}
	c := newLoaded(t, api, ViewNew, orders(st, 1), Options{})

	c.Close()
	c.Close()

	assert.ErrorIs(t, c.Refresh(context.Background()), ErrClosed)
	assert.ErrorIs(t, c.Confirm(context.Background(), 1), apperrors.ErrCanceled)
}

func TestFeed(t *testing.T) {
	f := NewFeed(2)
	f.Notify(Notification{OrderID: 1})
	f.Notify(Notification{OrderID: 2})
	f.Notify(Notification{OrderID: 3})

	got := f.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].OrderID)
	assert.Equal(t, int64(3), got[1].OrderID)
	assert.Empty(t, f.Drain())
}
