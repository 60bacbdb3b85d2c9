package internal

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/trellis/pkg/bundle"
)

type runtimeRouteKey struct{}

// MatchedRuntimeRoute returns the runtime route that matched the request.
// Template modules use it to load the content record behind the route.
func MatchedRuntimeRoute(c Context) (RuntimeRoute, bool) {
	rt, ok := c.Get(runtimeRouteKey{}).(RuntimeRoute)
	return rt, ok
}

// Dispatcher resolves a request to a module chain, runs the pipeline and
// renders the result.
//
// Static routes are tried first, in registration order. GET and HEAD
// requests that match no static route fall back to the runtime table, whose
// routes are canonical with a trailing slash: a bare path is answered with a
// permanent redirect to its slash form.
type Dispatcher struct {
	registry *Registry
	routes   *routeTable
	runtime  *RuntimeTable
	renderer *Renderer
	bundler  bundle.Bundler
	notFound HandlerFunc
	entry    string
}

func newDispatcher(registry *Registry, routes *routeTable, runtime *RuntimeTable, renderer *Renderer) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		routes:   routes,
		runtime:  runtime,
		renderer: renderer,
	}
}

// Handle serves one request.
func (d *Dispatcher) Handle(c Context) error {
	req := c.Request()
	path := req.URL.Path

	if route, ok := d.routes.match(path); ok {
		serve := func(c Context) error {
			return d.serve(c, route.chain)
		}
		return chain(serve, route.Middleware)(c)
	}

	if d.runtime != nil && (req.Method == http.MethodGet || req.Method == http.MethodHead) {
		rt, redirect, ok := d.runtime.Match(path)
		if ok {
			if redirect {
				target := rt.Pattern
				if req.URL.RawQuery != "" {
					target += "?" + req.URL.RawQuery
				}
				return c.Redirect(http.StatusMovedPermanently, target)
			}
			modules, err := d.registry.Chain(rt.Modules)
			if err != nil {
				return fmt.Errorf("runtime route %s: %w", rt.Pattern, err)
			}
			c.Set(runtimeRouteKey{}, rt)
			return d.serve(c, modules)
		}
	}

	if d.notFound != nil {
		return d.notFound(c)
	}
	return ErrNotFound("page not found")
}

func (d *Dispatcher) serve(c Context, modules []*Module) error {
	tree, res, err := runPipeline(c, modules)
	if err != nil {
		return err
	}
	if res != nil {
		return writeResult(c, *res)
	}

	leaf := tree.Leaf()
	if leaf == nil || leaf.Module.IsDataOnly() {
		return ErrMethodNotAllowed("method not allowed")
	}

	manifest, err := d.manifest(c, tree)
	if err != nil {
		return err
	}

	return c.Render(tree.Status, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return d.renderer.Document(ctx, w, tree, manifest)
	}))
}

// manifest builds (or reuses) the client bundles of the tree.
func (d *Dispatcher) manifest(c Context, tree *Tree) (*bundle.Manifest, error) {
	if d.bundler == nil {
		return nil, nil
	}
	req := bundleRequest(d.entry, tree)
	m, err := d.bundler.Build(c.Context(), req)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	return m, nil
}
