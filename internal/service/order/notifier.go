package order

import (
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is what the UI shows as a toast after a transition.
type Notification struct {
	Level   Level     `json:"level"`
	OrderID int64     `json:"order_id"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}

// Feed keeps the most recent notifications for the HTTP surface to drain.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 100
	}
	return &Feed{limit: limit}
}

func (f *Feed) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, n)
	if over := len(f.items) - f.limit; over > 0 {
		f.items = append([]Notification(nil), f.items[over:]...)
	}
}

// Drain returns and clears the buffered notifications, oldest first.
func (f *Feed) Drain() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.items
	f.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

func successMessage(kind Kind) string {
	switch kind {
	case KindConfirm:
		return "Order confirmed"
	case KindCancel:
		return "Order canceled"
	case KindCheckout:
		return "Book handed out"
	case KindAcceptReturn:
		return "Book returned"
	}
	return "Done"
}
