package internal

import (
	"fmt"
	"strings"
)

// Route is a static routing table entry: a path pattern, the middleware that
// guards it and the module chain (layouts first, leaf last) it renders.
//
// Patterns are exact paths ("/admin/users") or prefixes ending in a
// wildcard ("/admin/*"). A trailing slash is not significant.
type Route struct {
	Pattern    string
	Modules    []string
	Middleware []Middleware
}

// compiledRoute is a Route with its module chain resolved.
type compiledRoute struct {
	Route
	chain    []*Module
	prefix   string
	wildcard bool
}

func (r *compiledRoute) match(path string) bool {
	path = trimSlash(path)
	if !r.wildcard {
		return path == r.prefix
	}
	if r.prefix == "" {
		return true
	}
	return path == r.prefix || strings.HasPrefix(path, r.prefix+"/")
}

// routeTable is the ordered static table. It is built once in New and never
// mutated afterwards.
type routeTable struct {
	routes []*compiledRoute
}

func newRouteTable(routes []Route, registry *Registry) (*routeTable, error) {
	t := &routeTable{routes: make([]*compiledRoute, 0, len(routes))}
	for _, r := range routes {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("route %q: pattern must start with /", r.Pattern)
		}
		if len(r.Modules) == 0 {
			return nil, fmt.Errorf("route %q: empty module chain", r.Pattern)
		}
		chain, err := registry.Chain(r.Modules)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", r.Pattern, err)
		}

		cr := &compiledRoute{Route: r, chain: chain}
		if p, ok := strings.CutSuffix(r.Pattern, "/*"); ok {
			cr.wildcard = true
			cr.prefix = trimSlash(p)
		} else {
			cr.prefix = trimSlash(r.Pattern)
		}
		t.routes = append(t.routes, cr)
	}
	return t, nil
}

// match returns the first route matching path in registration order.
func (t *routeTable) match(path string) (*compiledRoute, bool) {
	for _, r := range t.routes {
		if r.match(path) {
			return r, true
		}
	}
	return nil, false
}

// trimSlash removes trailing slashes; the root path stays empty.
func trimSlash(p string) string {
	return strings.TrimRight(p, "/")
}
