package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
)

// Record is the persisted form of a session, keyed the way the browser
// dashboard keeps it in local storage.
type Record struct {
	Token string `json:"token"`
	// Roles is the JSON-array-encoded list of role identifiers
	Roles string `json:"isRoles"`
}

// Session is the explicit authentication context threaded through the API
// client and the permission resolver.
type Session struct {
	ID    string
	Token string
	Roles []string
}

// FromRecord builds a Session. Malformed role data is logged and treated as
// no roles.
func FromRecord(id string, rec Record, log *logger.Logger) Session {
	roles, err := ParseRoles(rec.Roles)
	if err != nil && log != nil {
		log.Warn("ignoring malformed persisted roles", "session_id", id, "error", err.Error())
	}
	return Session{ID: id, Token: strings.TrimSpace(rec.Token), Roles: roles}
}

// Record converts the session back to its persisted form.
func (s Session) Record() Record {
	roles := s.Roles
	if roles == nil {
		roles = []string{}
	}
	raw, _ := json.Marshal(roles)
	return Record{Token: s.Token, Roles: string(raw)}
}

// HasRole reports whether the session holds role.
func (s Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleSet returns the roles as a set.
func (s Session) RoleSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Roles))
	for _, r := range s.Roles {
		set[r] = struct{}{}
	}
	return set
}

// Validate fails with AuthMissing when the token is empty, or when it is a
// JWT whose exp claim has passed. Opaque tokens are left for the server.
func (s Session) Validate(now time.Time) error {
	if s.Token == "" {
		return apperrors.AuthMissing("no token in session", nil)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if now.After(exp.Time) {
		return apperrors.AuthMissing("token expired", nil)
	}
	return nil
}

// ParseRoles decodes a JSON array of role identifiers. Numbers are
// normalized to their decimal form and duplicates dropped. Empty input and
// null mean no roles. Anything else that is not exactly one array yields an
// empty set and an error.
func ParseRoles(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return []string{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var items []interface{}
	if err := dec.Decode(&items); err != nil {
		return []string{}, fmt.Errorf("failed to decode roles: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return []string{}, fmt.Errorf("failed to decode roles: trailing data")
	}

	roles := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		var role string
		switch v := item.(type) {
		case string:
			role = strings.TrimSpace(v)
		case json.Number:
			role = v.String()
		default:
			return []string{}, fmt.Errorf("role at index %d has unsupported type %T", i, item)
		}
		if role == "" {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles, nil
}
