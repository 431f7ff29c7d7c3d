package order

import (
	"sort"

	"github.com/jwalitptl/library-admin/internal/model"
)

// WithHistory is an order plus its recorded status changes, oldest first.
type WithHistory struct {
	model.Order
	History []model.OrderHistory `json:"history"`
}

// MergeHistory attaches history records to orders through an index keyed
// by order id. Records for orders not in the list are ignored.
func MergeHistory(orders []model.Order, records []model.OrderHistory) []WithHistory {
	byOrder := make(map[int64][]model.OrderHistory, len(orders))
	for _, rec := range records {
		byOrder[rec.OrderID] = append(byOrder[rec.OrderID], rec)
	}

	out := make([]WithHistory, 0, len(orders))
	for _, o := range orders {
		hist := byOrder[o.ID]
		sort.SliceStable(hist, func(i, j int) bool {
			return hist[i].CreatedAt.Before(hist[j].CreatedAt)
		})
		if hist == nil {
			hist = []model.OrderHistory{}
		}
		out = append(out, WithHistory{Order: o, History: hist})
	}
	return out
}
