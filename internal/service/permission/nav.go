package permission

// NavItem is one dashboard navigation entry. Code and Table are the
// requirements; an item with neither is public.
type NavItem struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Path  string `json:"path"`
	Code  string `json:"code,omitempty"`
	Table string `json:"table,omitempty"`
}

// IsNavItemVisible reports whether set satisfies item's requirement.
func IsNavItemVisible(item NavItem, set Set) bool {
	if item.Code == "" && item.Table == "" {
		return true
	}
	if item.Code != "" && set.HasCode(item.Code) {
		return true
	}
	return item.Table != "" && set.HasTable(item.Table)
}

// FilterNav keeps the visible items in their original order.
func FilterNav(items []NavItem, set Set) []NavItem {
	out := make([]NavItem, 0, len(items))
	for _, it := range items {
		if IsNavItemVisible(it, set) {
			out = append(out, it)
		}
	}
	return out
}

// DefaultNav is the dashboard's navigation table.
func DefaultNav() []NavItem {
	return []NavItem{
		{Key: "dashboard", Title: "Dashboard", Path: "/"},
		{Key: "orders", Title: "Orders", Path: "/orders", Table: "user_orders"},
		{Key: "new-orders", Title: "New orders", Path: "/orders/new", Table: "user_orders"},
		{Key: "archive", Title: "Archive", Path: "/orders/archive", Table: "user_orders"},
		{Key: "blacklist", Title: "Blacklist", Path: "/orders/blacklist", Table: "user_orders"},
		{Key: "books", Title: "Books", Path: "/books", Table: "books"},
		{Key: "book-items", Title: "Book items", Path: "/book-items", Table: "book_items"},
		{Key: "categories", Title: "Categories", Path: "/categories", Table: "categories"},
		{Key: "kafedra", Title: "Kafedra", Path: "/kafedra", Table: "kafedras"},
		{Key: "directions", Title: "Directions", Path: "/directions", Table: "directions"},
		{Key: "student-groups", Title: "Student groups", Path: "/student-groups", Table: "student_groups"},
		{Key: "authors", Title: "Authors", Path: "/authors", Table: "authors"},
		{Key: "languages", Title: "Languages", Path: "/languages", Table: "languages"},
		{Key: "alphabets", Title: "Alphabets", Path: "/alphabets", Table: "alphabets"},
		{Key: "statuses", Title: "Statuses", Path: "/statuses", Table: "statuses"},
		{Key: "teachers", Title: "Teachers", Path: "/teachers", Table: "teachers"},
		{Key: "users", Title: "Users", Path: "/users", Table: "users"},
		{Key: "admins", Title: "Admins", Path: "/admins", Table: "admins"},
		{Key: "statistics", Title: "Statistics", Path: "/statistics", Code: "statistika"},
	}
}
