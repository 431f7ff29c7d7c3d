package dashboard

import (
	"context"
	"net/url"
	"sort"

	"github.com/jwalitptl/library-admin/internal/client"
)

type listFunc func(ctx context.Context, c *client.Client, code string, query url.Values) (interface{}, error)

type catalogEntry struct {
	table string
	list  listFunc
}

func lister[T any](resource func(*client.Client) *client.Resource[T]) listFunc {
	return func(ctx context.Context, c *client.Client, code string, query url.Values) (interface{}, error) {
		items, err := resource(c).List(ctx, code, query)
		if err != nil {
			return nil, err
		}
		return items, nil
	}
}

// catalog is keyed by the nav item key; table is the permission it needs.
var catalog = map[string]catalogEntry{
	"books":          {"books", lister((*client.Client).Books)},
	"book-items":     {"book_items", lister((*client.Client).BookItems)},
	"categories":     {"categories", lister((*client.Client).Categories)},
	"kafedra":        {"kafedras", lister((*client.Client).Kafedras)},
	"directions":     {"directions", lister((*client.Client).Directions)},
	"student-groups": {"student_groups", lister((*client.Client).StudentGroups)},
	"authors":        {"authors", lister((*client.Client).Authors)},
	"languages":      {"languages", lister((*client.Client).Languages)},
	"alphabets":      {"alphabets", lister((*client.Client).Alphabets)},
	"statuses":       {"statuses", lister((*client.Client).Statuses)},
	"teachers":       {"teachers", lister((*client.Client).Teachers)},
	"admins":         {"admins", lister((*client.Client).Admins)},
	"users":          {"users", lister((*client.Client).Users)},
}

// CatalogNames lists the resources Catalog accepts.
func CatalogNames() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
