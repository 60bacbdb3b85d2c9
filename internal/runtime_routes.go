package internal

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"
)

// RuntimeRoute maps a content URL to the record it renders and the template
// module chain used to render it.
type RuntimeRoute struct {
	// Pattern is the canonical path, always with a trailing slash.
	Pattern  string   `json:"pattern"`
	RecordID string   `json:"record_id"`
	Modules  []string `json:"modules"`
}

// RuntimeSource produces the runtime routes from stored content.
type RuntimeSource interface {
	RuntimeRoutes(ctx context.Context) ([]RuntimeRoute, error)
}

// RuntimeSourceFunc adapts a function to RuntimeSource.
type RuntimeSourceFunc func(ctx context.Context) ([]RuntimeRoute, error)

func (f RuntimeSourceFunc) RuntimeRoutes(ctx context.Context) ([]RuntimeRoute, error) {
	return f(ctx)
}

// runtimeSnapshot is an immutable set of runtime routes.
type runtimeSnapshot struct {
	byPath map[string]RuntimeRoute
	routes []RuntimeRoute
}

// RuntimeTable holds the content-derived routes.
// Readers load the current snapshot; Replace swaps in a complete new one, so
// a reader never observes a partially rebuilt table.
type RuntimeTable struct {
	current atomic.Pointer[runtimeSnapshot]
}

// NewRuntimeTable creates an empty table.
func NewRuntimeTable() *RuntimeTable {
	t := &RuntimeTable{}
	t.current.Store(&runtimeSnapshot{byPath: map[string]RuntimeRoute{}})
	return t
}

// Replace installs routes as the new table. Patterns are canonicalized to
// their trailing-slash form; on duplicates the first route wins.
func (t *RuntimeTable) Replace(routes []RuntimeRoute) {
	snap := &runtimeSnapshot{
		byPath: make(map[string]RuntimeRoute, len(routes)),
		routes: make([]RuntimeRoute, 0, len(routes)),
	}
	for _, r := range routes {
		r.Pattern = canonicalPath(r.Pattern)
		if _, dup := snap.byPath[r.Pattern]; dup {
			continue
		}
		r.Modules = slices.Clone(r.Modules)
		snap.byPath[r.Pattern] = r
		snap.routes = append(snap.routes, r)
	}
	t.current.Store(snap)
}

// Rebuild loads routes from src and replaces the table.
// On error the current table stays in place.
func (t *RuntimeTable) Rebuild(ctx context.Context, src RuntimeSource) error {
	routes, err := src.RuntimeRoutes(ctx)
	if err != nil {
		return err
	}
	t.Replace(routes)
	return nil
}

// Match looks path up. For a canonical hit it returns the route.
// For a bare path whose canonical form exists it returns the route with
// redirect set; the caller answers with a permanent redirect.
func (t *RuntimeTable) Match(path string) (route RuntimeRoute, redirect, ok bool) {
	snap := t.current.Load()
	if r, found := snap.byPath[path]; found {
		return r, false, true
	}
	if !strings.HasSuffix(path, "/") {
		if r, found := snap.byPath[path+"/"]; found {
			return r, true, true
		}
	}
	return RuntimeRoute{}, false, false
}

// Routes returns the routes of the current snapshot.
func (t *RuntimeTable) Routes() []RuntimeRoute {
	return slices.Clone(t.current.Load().routes)
}

// Len returns the number of routes in the current snapshot.
func (t *RuntimeTable) Len() int {
	return len(t.current.Load().routes)
}

func canonicalPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}
