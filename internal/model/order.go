package model

import (
	"time"
)

// OrderStatus is the numeric status_id of an order
type OrderStatus int

const (
	StatusRequested     OrderStatus = 1
	StatusReady         OrderStatus = 2
	StatusCheckedOut    OrderStatus = 3
	StatusReturnDue     OrderStatus = 4
	StatusReturnPending OrderStatus = 5
	StatusOverdue       OrderStatus = 7
	StatusArchived      OrderStatus = 8
)

func (s OrderStatus) String() string {
	switch s {
	case StatusRequested:
		return "requested"
	case StatusReady:
		return "ready"
	case StatusCheckedOut:
		return "checked_out"
	case StatusReturnDue:
		return "return_due"
	case StatusReturnPending:
		return "return_pending"
	case StatusOverdue:
		return "overdue"
	case StatusArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// Order is a borrow order with server-joined book and user snapshots
type Order struct {
	ID            int64       `json:"id"`
	StatusID      OrderStatus `json:"status_id"`
	StatusMessage string      `json:"status_message,omitempty"`
	UserID        int64       `json:"user_id"`
	BookID        int64       `json:"book_id"`
	CreatedAt     time.Time   `json:"created_at"`
	FinishedAt    *time.Time  `json:"finished_at,omitempty"`
	Book          *Book       `json:"Book,omitempty"`
	User          *User       `json:"User,omitempty"`
}

// OrderHistory is one status change recorded for an order
type OrderHistory struct {
	ID        int64       `json:"id"`
	OrderID   int64       `json:"order_id"`
	StatusID  OrderStatus `json:"status_id"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// BookCodeRequest is the body of the checkout and return-check calls
type BookCodeRequest struct {
	BookCode string `json:"book_code" binding:"required,notblank" validate:"required,notblank"`
}
