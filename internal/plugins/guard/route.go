package guard

import "strings"

// Route describes what a path requires.
type Route struct {
	Path string

	// Public routes pass every gate.
	Public bool

	// GuestOnly routes are for logged-out visitors; principals are sent to
	// the landing page.
	GuestOnly bool

	// SkipConfiguration exempts the route from the configuration gate.
	SkipConfiguration bool
}

// Table maps paths to routes. Unknown paths are treated as protected
// routes requiring authentication and configuration.
type Table struct {
	routes map[string]Route
}

// NewTable indexes routes by path.
func NewTable(routes ...Route) *Table {
	t := &Table{routes: make(map[string]Route, len(routes))}
	for _, r := range routes {
		t.routes[normalizePath(r.Path)] = r
	}
	return t
}

// Lookup returns the route for path.
func (t *Table) Lookup(path string) Route {
	path = normalizePath(path)
	if r, ok := t.routes[path]; ok {
		return r
	}
	return Route{Path: path}
}

// normalizePath drops the query, fragment and trailing slash.
func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}
