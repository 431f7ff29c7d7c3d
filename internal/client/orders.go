package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jwalitptl/library-admin/internal/model"
	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
)

const ordersPath = "/api/user-order"

// ListGroupPermissions needs only the bearer token.
func (c *Client) ListGroupPermissions(ctx context.Context) ([]model.GroupPermission, error) {
	var out []model.GroupPermission
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/group-permissions",
		route:  "group-permissions",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListOrders(ctx context.Context, permission string) ([]model.Order, error) {
	var out []model.Order
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       ordersPath,
		route:      "user-order",
		permission: permission,
		gated:      true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadyOrder moves a requested order to ready for pickup.
func (c *Client) ReadyOrder(ctx context.Context, permission string, id int64) error {
	return c.orderCall(ctx, http.MethodPatch, permission, id, "ready", nil)
}

func (c *Client) RejectOrder(ctx context.Context, permission string, id int64) error {
	return c.orderCall(ctx, http.MethodPatch, permission, id, "reject", nil)
}

func (c *Client) DeleteOrder(ctx context.Context, permission string, id int64) error {
	return c.orderCall(ctx, http.MethodDelete, permission, id, "", nil)
}

// CheckOrder confirms pickup of a ready order.
func (c *Client) CheckOrder(ctx context.Context, permission string, id int64, bookCode string) error {
	body, err := bookCodeBody(bookCode)
	if err != nil {
		return err
	}
	return c.orderCall(ctx, http.MethodPost, permission, id, "checked", body)
}

// ReturnCheck accepts the return of a checked-out order.
func (c *Client) ReturnCheck(ctx context.Context, permission string, id int64, bookCode string) error {
	body, err := bookCodeBody(bookCode)
	if err != nil {
		return err
	}
	return c.orderCall(ctx, http.MethodPost, permission, id, "return-check", body)
}

func (c *Client) ListOrderHistory(ctx context.Context, permission string) ([]model.OrderHistory, error) {
	var out []model.OrderHistory
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/api/order-history",
		route:      "order-history",
		permission: permission,
		gated:      true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) orderCall(ctx context.Context, method, permission string, id int64, action string, body interface{}) error {
	path := fmt.Sprintf("%s/%d", ordersPath, id)
	route := "user-order/:id"
	if action != "" {
		path += "/" + action
		route += "/" + action
	}
	return c.do(ctx, request{
		method:     method,
		path:       path,
		route:      route,
		permission: permission,
		gated:      true,
		body:       body,
	}, nil)
}

func bookCodeBody(bookCode string) (*model.BookCodeRequest, error) {
	code := strings.TrimSpace(bookCode)
	if code == "" {
		return nil, apperrors.TransitionPrecondition("book code is required")
	}
	return &model.BookCodeRequest{BookCode: code}, nil
}
