package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jwalitptl/library-admin/internal/model"
)

// Resource is the plain CRUD surface of one /api/<name> collection.
type Resource[T any] struct {
	c    *Client
	name string
}

func NewResource[T any](c *Client, name string) *Resource[T] {
	return &Resource[T]{c: c, name: name}
}

func (r *Resource[T]) Name() string {
	return r.name
}

func (r *Resource[T]) List(ctx context.Context, permission string, query url.Values) ([]T, error) {
	var out []T
	err := r.c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/api/" + r.name,
		route:      r.name,
		permission: permission,
		gated:      true,
		query:      query,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.name, err)
	}
	return out, nil
}

func (r *Resource[T]) Get(ctx context.Context, permission string, id int64) (*T, error) {
	out := new(T)
	if err := r.c.do(ctx, r.itemRequest(http.MethodGet, permission, id, nil), out); err != nil {
		return nil, fmt.Errorf("failed to get %s %d: %w", r.name, id, err)
	}
	return out, nil
}

func (r *Resource[T]) Create(ctx context.Context, permission string, in interface{}) (*T, error) {
	out := new(T)
	err := r.c.do(ctx, request{
		method:     http.MethodPost,
		path:       "/api/" + r.name,
		route:      r.name,
		permission: permission,
		gated:      true,
		body:       in,
	}, out)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", r.name, err)
	}
	return out, nil
}

func (r *Resource[T]) Update(ctx context.Context, permission string, id int64, in interface{}) (*T, error) {
	out := new(T)
	if err := r.c.do(ctx, r.itemRequest(http.MethodPut, permission, id, in), out); err != nil {
		return nil, fmt.Errorf("failed to update %s %d: %w", r.name, id, err)
	}
	return out, nil
}

func (r *Resource[T]) Delete(ctx context.Context, permission string, id int64) error {
	if err := r.c.do(ctx, r.itemRequest(http.MethodDelete, permission, id, nil), nil); err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", r.name, id, err)
	}
	return nil
}

func (r *Resource[T]) itemRequest(method, permission string, id int64, body interface{}) request {
	return request{
		method:     method,
		path:       fmt.Sprintf("/api/%s/%d", r.name, id),
		route:      r.name + "/:id",
		permission: permission,
		gated:      true,
		body:       body,
	}
}

func (c *Client) Books() *Resource[model.Book] {
	return NewResource[model.Book](c, "books")
}

func (c *Client) BookItems() *Resource[model.BookItem] {
	return NewResource[model.BookItem](c, "book-items")
}

func (c *Client) Categories() *Resource[model.Category] {
	return NewResource[model.Category](c, "categories")
}

func (c *Client) Kafedras() *Resource[model.Kafedra] {
	return NewResource[model.Kafedra](c, "kafedra")
}

func (c *Client) Directions() *Resource[model.Direction] {
	return NewResource[model.Direction](c, "directions")
}

func (c *Client) StudentGroups() *Resource[model.StudentGroup] {
	return NewResource[model.StudentGroup](c, "student-groups")
}

func (c *Client) Authors() *Resource[model.Author] {
	return NewResource[model.Author](c, "authors")
}

func (c *Client) Languages() *Resource[model.Language] {
	return NewResource[model.Language](c, "languages")
}

func (c *Client) Alphabets() *Resource[model.Alphabet] {
	return NewResource[model.Alphabet](c, "alphabets")
}

func (c *Client) Statuses() *Resource[model.Status] {
	return NewResource[model.Status](c, "statuses")
}

func (c *Client) Teachers() *Resource[model.Teacher] {
	return NewResource[model.Teacher](c, "teachers")
}

func (c *Client) Admins() *Resource[model.Admin] {
	return NewResource[model.Admin](c, "admin")
}

func (c *Client) Users() *Resource[model.User] {
	return NewResource[model.User](c, "users")
}
