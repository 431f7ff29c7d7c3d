package order

import (
	"github.com/jwalitptl/library-admin/internal/model"
)

// Kind is a client-triggered order transition
type Kind string

const (
	KindConfirm      Kind = "confirm"
	KindCancel       Kind = "cancel"
	KindCheckout     Kind = "checkout"
	KindAcceptReturn Kind = "accept_return"
)

// NeedsBookCode reports whether the transition carries a book_code credential.
func (k Kind) NeedsBookCode() bool {
	return k == KindCheckout || k == KindAcceptReturn
}

func (k Kind) Valid() bool {
	switch k {
	case KindConfirm, KindCancel, KindCheckout, KindAcceptReturn:
		return true
	}
	return false
}

// outbound lists, per status, the transitions this client may start.
// Statuses 5, 7 and 8 have none.
var outbound = map[model.OrderStatus][]Kind{
	model.StatusRequested:  {KindConfirm, KindCancel},
	model.StatusReady:      {KindCheckout},
	model.StatusCheckedOut: {KindAcceptReturn},
	model.StatusReturnDue:  {KindAcceptReturn},
}

func CanTransition(status model.OrderStatus, kind Kind) bool {
	for _, k := range outbound[status] {
		if k == kind {
			return true
		}
	}
	return false
}

// Actions returns the transitions available for status, in display order.
func Actions(status model.OrderStatus) []Kind {
	kinds := outbound[status]
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}
