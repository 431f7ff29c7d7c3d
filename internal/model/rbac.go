package model

// PermissionInfo describes one permission granted by a group
type PermissionInfo struct {
	ID       FlexID `json:"id"`
	CodeName string `json:"code_name"`
	Table    string `json:"table,omitempty"`
}

// GroupPermission is one "group grants permission" row
type GroupPermission struct {
	ID             FlexID         `json:"id"`
	GroupID        FlexID         `json:"group_id"`
	PermissionID   FlexID         `json:"permission_id"`
	PermissionInfo PermissionInfo `json:"permissionInfo"`
}

// Group is a role a user can hold
type Group struct {
	ID   FlexID `json:"id"`
	Name string `json:"name"`
}
