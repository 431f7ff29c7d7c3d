package permission

import (
	"context"
	"fmt"

	"github.com/jwalitptl/library-admin/internal/model"
	"github.com/jwalitptl/library-admin/internal/session"
	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
)

// Lister fetches the group to permission mapping.
type Lister interface {
	ListGroupPermissions(ctx context.Context) ([]model.GroupPermission, error)
}

// Grant is the outcome of resolving one session.
type Grant struct {
	Session session.Session
	// Code is the X-permission header value; empty means unresolved
	Code string
	Set  Set
}

func (g Grant) Resolved() bool {
	return g.Code != ""
}

// Binder returns a Lister acting as sess.
type Binder func(sess session.Session) Lister

type Service struct {
	store  session.Store
	bind   Binder
	logger *logger.Logger
}

// NewService fetches with api whatever session is loaded.
func NewService(store session.Store, api Lister, log *logger.Logger) *Service {
	return NewSessionService(store, func(session.Session) Lister { return api }, log)
}

// NewSessionService fetches as the loaded session through bind.
func NewSessionService(store session.Store, bind Binder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, bind: bind, logger: log}
}

// Resolve re-reads the session and fetches group permissions. A session
// without roles is unresolved without a network call.
func (s *Service) Resolve(ctx context.Context, sessionID string) (Grant, error) {
	sess, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Grant{}, err
	}
	grant := Grant{Session: sess, Set: NewSet(nil, nil)}

	if len(sess.Roles) == 0 {
		s.logger.Warn("session holds no roles", "session_id", sessionID)
		return grant, apperrors.PermissionUnresolved("no roles in session")
	}

	perms, err := s.bind(sess).ListGroupPermissions(ctx)
	if err != nil {
		return grant, fmt.Errorf("failed to fetch group permissions: %w", err)
	}

	grant.Set = ResolveSet(sess.Roles, perms)
	code, ok := ResolvePermissionCode(sess.Roles, perms)
	if !ok {
		s.logger.Warn("no group permission matches session roles",
			"session_id", sessionID, "roles", sess.Roles, "rows", len(perms))
		return grant, apperrors.PermissionUnresolved("none of the held roles grants a permission")
	}
	grant.Code = code

	s.logger.Debug("resolved permission code", "session_id", sessionID, "code", code)
	return grant, nil
}
