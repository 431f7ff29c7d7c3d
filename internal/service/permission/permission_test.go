package permission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/library-admin/internal/model"
	"github.com/jwalitptl/library-admin/internal/session"
	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
)

func gp(group, code, table string) model.GroupPermission {
	return model.GroupPermission{
		GroupID:        model.FlexID(group),
		PermissionInfo: model.PermissionInfo{CodeName: code, Table: table},
	}
}

func TestResolvePermissionCode(t *testing.T) {
	perms := []model.GroupPermission{
		gp("1", "admin_all", "admins"),
		gp("2", "kutubxonachi", "user_orders"),
		gp("3", "kafedra", "books"),
		gp("2", "kutubxonachi_books", "books"),
	}

	tests := []struct {
		name   string
		roles  []string
		want   string
		wantOK bool
	}{
		{"single match", []string{"2"}, "kutubxonachi", true},
		{"first row wins over role order", []string{"3", "2"}, "kutubxonachi", true},
		{"no match", []string{"9"}, "", false},
		{"no roles", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				got, ok := ResolvePermissionCode(tt.roles, perms)
				assert.Equal(t, tt.want, got)
				assert.Equal(t, tt.wantOK, ok)
			}
		})
	}
}

func TestResolvePermissionCode_MalformedRolesFailClosed(t *testing.T) {
	roles, err := session.ParseRoles(`["2"`)
	assert.Error(t, err)

	got, ok := ResolvePermissionCode(roles, []model.GroupPermission{gp("2", "kutubxonachi", "")})
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestResolveSet(t *testing.T) {
	set := ResolveSet([]string{"2"}, []model.GroupPermission{
		gp("2", "kutubxonachi", "user_orders"),
		gp("2", "kutubxonachi_books", "books"),
		gp("3", "kafedra", "teachers"),
	})

	assert.True(t, set.HasCode("kutubxonachi"))
	assert.True(t, set.HasCode("kutubxonachi_books"))
	assert.False(t, set.HasCode("kafedra"))
	assert.True(t, set.HasTable("books"))
	assert.False(t, set.HasTable("teachers"))
	assert.ElementsMatch(t, []string{"user_orders", "books"}, set.Tables())
}

func TestIsNavItemVisible(t *testing.T) {
	set := NewSet([]string{"statistika"}, []string{"books"})

	assert.True(t, IsNavItemVisible(NavItem{Key: "home"}, set))
	assert.True(t, IsNavItemVisible(NavItem{Code: "statistika"}, set))
	assert.True(t, IsNavItemVisible(NavItem{Table: "books"}, set))
	assert.False(t, IsNavItemVisible(NavItem{Code: "admin_all"}, set))
	assert.False(t, IsNavItemVisible(NavItem{Table: "admins"}, set))
	assert.True(t, IsNavItemVisible(NavItem{Key: "home"}, NewSet(nil, nil)))
}

func TestIsNavItemVisible_Monotonic(t *testing.T) {
	base := NewSet([]string{"kutubxonachi"}, []string{"books"})
	extra := []string{"statistika", "admin_all", "kutubxonachi"}

	for _, code := range extra {
		grown := base.With(code)
		for _, item := range DefaultNav() {
			if IsNavItemVisible(item, base) {
				assert.True(t, IsNavItemVisible(item, grown), "adding %q hid %q", code, item.Key)
			}
		}
	}

	for _, item := range DefaultNav() {
		if !IsNavItemVisible(item, base) {
			assert.False(t, IsNavItemVisible(item, NewSet(nil, []string{"books"})), "removing a code revealed %q", item.Key)
		}
	}
}

func TestFilterNav_KeepsOrder(t *testing.T) {
	visible := FilterNav(DefaultNav(), NewSet(nil, []string{"user_orders"}))

	keys := make([]string, 0, len(visible))
	for _, it := range visible {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []string{"dashboard", "orders", "new-orders", "archive", "blacklist"}, keys)
}

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListGroupPermissions(ctx context.Context) ([]model.GroupPermission, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]model.GroupPermission), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store := session.NewMemoryStore(time.Minute, nil)
		store.SaveRecord("s1", session.Record{Token: "tok", Roles: `["2"]`})
		api := new(mockLister)
		api.On("ListGroupPermissions", ctx).Return([]model.GroupPermission{gp("2", "kutubxonachi", "user_orders")}, nil)

		grant, err := NewService(store, api, nil).Resolve(ctx, "s1")

		require.NoError(t, err)
		assert.True(t, grant.Resolved())
		assert.Equal(t, "kutubxonachi", grant.Code)
		assert.True(t, grant.Set.HasTable("user_orders"))
		api.AssertExpectations(t)
	})

	t.Run("Malformed roles skip the fetch", func(t *testing.T) {
		store := session.NewMemoryStore(time.Minute, nil)
		store.SaveRecord("s1", session.Record{Token: "tok", Roles: `{oops`})
		api := new(mockLister)

		grant, err := NewService(store, api, nil).Resolve(ctx, "s1")

		assert.ErrorIs(t, err, apperrors.ErrPermissionUnresolved)
		assert.False(t, grant.Resolved())
		api.AssertNotCalled(t, "ListGroupPermissions", mock.Anything)
	})

	t.Run("No matching group", func(t *testing.T) {
		store := session.NewMemoryStore(time.Minute, nil)
		store.SaveRecord("s1", session.Record{Token: "tok", Roles: `[7]`})
		api := new(mockLister)
		api.On("ListGroupPermissions", ctx).Return([]model.GroupPermission{gp("2", "kutubxonachi", "")}, nil)

		grant, err := NewService(store, api, nil).Resolve(ctx, "s1")

		assert.ErrorIs(t, err, apperrors.ErrPermissionUnresolved)
		assert.Empty(t, grant.Code)
		api.AssertExpectations(t)
	})

	t.Run("Missing session", func(t *testing.T) {
		store := session.NewMemoryStore(time.Minute, nil)
		_, err := NewService(store, new(mockLister), nil).Resolve(ctx, "nobody")
		assert.ErrorIs(t, err, apperrors.ErrAuthMissing)
	})

	t.Run("Binds the loaded session", func(t *testing.T) {
		store := session.NewMemoryStore(time.Minute, nil)
		store.SaveRecord("s1", session.Record{Token: "tok-1", Roles: `["2"]`})
		api := new(mockLister)
		api.On("ListGroupPermissions", ctx).Return([]model.GroupPermission{gp("2", "kutubxonachi", "")}, nil)

		var bound session.Session
		svc := NewSessionService(store, func(s session.Session) Lister {
			bound = s
			return api
		}, nil)
		_, err := svc.Resolve(ctx, "s1")

		require.NoError(t, err)
		assert.Equal(t, "tok-1", bound.Token)
	})

	t.Run("API error", func(t *testing.T) {
		store := session.NewMemoryStore(time.Minute, nil)
		store.SaveRecord("s1", session.Record{Token: "tok", Roles: `["2"]`})
		api := new(mockLister)
		api.On("ListGroupPermissions", ctx).Return(nil, apperrors.RemoteRejected(500, ""))

		_, err := NewService(store, api, nil).Resolve(ctx, "s1")
		assert.ErrorIs(t, err, apperrors.ErrRemoteRejected)
	})
}
