package order

import (
	"time"

	"github.com/jwalitptl/library-admin/internal/model"
)

// View is a filtered window over the server's order list.
type View struct {
	Name         string
	PollInterval time.Duration
	include      func(model.OrderStatus) bool
}

var (
	ViewNew = View{Name: "new", PollInterval: 2 * time.Second, include: func(s model.OrderStatus) bool {
		return s == model.StatusRequested
	}}
	ViewActive = View{Name: "active", PollInterval: 100 * time.Second, include: func(s model.OrderStatus) bool {
		return s != model.StatusArchived
	}}
	ViewOverdue = View{Name: "overdue", include: func(s model.OrderStatus) bool {
		return s == model.StatusOverdue
	}}
	ViewArchive = View{Name: "archive", include: func(s model.OrderStatus) bool {
		return s == model.StatusArchived
	}}
	ViewBlacklist = View{Name: "blacklist", include: func(s model.OrderStatus) bool {
		return s == model.StatusOverdue || s == model.StatusArchived
	}}
)

// Views returns every view, the default one first.
func Views() []View {
	return []View{ViewActive, ViewNew, ViewOverdue, ViewArchive, ViewBlacklist}
}

func ViewByName(name string) (View, bool) {
	for _, v := range Views() {
		if v.Name == name {
			return v, true
		}
	}
	return View{}, false
}

func (v View) Includes(o model.Order) bool {
	if v.include == nil {
		return true
	}
	return v.include(o.StatusID)
}

// WithPollInterval returns a copy of v polling every d; zero disables polling.
func (v View) WithPollInterval(d time.Duration) View {
	v.PollInterval = d
	return v
}

// Filter keeps the orders the view includes, in server order.
func (v View) Filter(orders []model.Order) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if v.Includes(o) {
			out = append(out, o)
		}
	}
	return out
}
