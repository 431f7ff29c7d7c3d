package permission

import (
	"github.com/jwalitptl/library-admin/internal/model"
)

// ResolvePermissionCode returns the code name of the first group permission,
// in list order, whose group the user holds. Only that one code is used as
// the X-permission header, even when several groups match.
func ResolvePermissionCode(roles []string, groupPermissions []model.GroupPermission) (string, bool) {
	if len(roles) == 0 {
		return "", false
	}
	held := toSet(roles)
	for _, gp := range groupPermissions {
		if _, ok := held[gp.GroupID.String()]; ok {
			return gp.PermissionInfo.CodeName, true
		}
	}
	return "", false
}

// Set is every code name and table reachable from the user's groups.
type Set struct {
	codes  map[string]struct{}
	tables map[string]struct{}
}

func NewSet(codes, tables []string) Set {
	return Set{codes: toSet(codes), tables: toSet(tables)}
}

// ResolveSet collects all matching code names and tables. It feeds
// navigation filtering only; request headers use ResolvePermissionCode.
func ResolveSet(roles []string, groupPermissions []model.GroupPermission) Set {
	s := Set{codes: map[string]struct{}{}, tables: map[string]struct{}{}}
	held := toSet(roles)
	for _, gp := range groupPermissions {
		if _, ok := held[gp.GroupID.String()]; !ok {
			continue
		}
		if gp.PermissionInfo.CodeName != "" {
			s.codes[gp.PermissionInfo.CodeName] = struct{}{}
		}
		if gp.PermissionInfo.Table != "" {
			s.tables[gp.PermissionInfo.Table] = struct{}{}
		}
	}
	return s
}

func (s Set) HasCode(code string) bool {
	_, ok := s.codes[code]
	return ok
}

func (s Set) HasTable(table string) bool {
	_, ok := s.tables[table]
	return ok
}

func (s Set) Empty() bool {
	return len(s.codes) == 0 && len(s.tables) == 0
}

func (s Set) Codes() []string {
	return keys(s.codes)
}

func (s Set) Tables() []string {
	return keys(s.tables)
}

// With returns a copy of s that also holds code.
func (s Set) With(code string) Set {
	cp := NewSet(s.Codes(), s.Tables())
	cp.codes[code] = struct{}{}
	return cp
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
