package internal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/trellis/pkg/bundle"
)

// Client exports a module may expose to the browser bundle.
const (
	ExportDefault = "default"
	ExportHead    = "Head"
)

// ErrUnknownModule is returned when a route references an unregistered module.
var ErrUnknownModule = errors.New("trellis: unknown module")

// Props is what a module component receives when rendered.
// Every node gets its own data; there is no ambient lookup.
type Props struct {
	LoaderData any
	ActionData any
	Vars       Variables
	Children   templ.Component
	ModulePath string
}

// Module is one unit of a route chain: a layout or a leaf route.
//
// A module without a Component is a data endpoint: its results are returned
// directly (redirects as redirects, data as JSON) and nothing is rendered.
type Module struct {
	// Loader runs on every request that matches the chain.
	Loader Hook

	// Action runs on POST before any loader of the chain.
	Action Hook

	// Component renders the module. Layouts render Props.Children.
	Component func(p Props) templ.Component

	// Head renders elements appended to the document head.
	Head func(p Props) templ.Component

	// ID is the module path, e.g. "routes/admin/users/edit".
	ID string

	// Source is the client file of the module relative to the bundle root.
	// Modules without a Source are server-only.
	Source string

	// Exports lists the exports declared by Source.
	// Only ExportDefault and ExportHead reach the browser.
	Exports []string

	// AcceptsChildren declares that Component renders Props.Children.
	// A layout that does not is rendered once, followed by its subtree.
	AcceptsChildren bool
}

// IsDataOnly reports whether the module renders nothing.
func (m *Module) IsDataOnly() bool {
	return m.Component == nil
}

// ClientExports returns the allow-listed exports of the module.
func (m *Module) ClientExports() []string {
	exports := m.Exports
	if len(exports) == 0 && m.Source != "" {
		exports = []string{ExportDefault}
	}
	return bundle.AllowedExports(exports)
}

// Registry holds modules by ID in registration order.
type Registry struct {
	modules map[string]*Module
	order   []string
}

// NewRegistry creates a registry from modules. Later duplicates replace
// earlier ones.
func NewRegistry(mods ...Module) *Registry {
	r := &Registry{modules: make(map[string]*Module, len(mods))}
	for _, m := range mods {
		r.Register(m)
	}
	return r
}

// Register adds or replaces a module.
func (r *Registry) Register(m Module) {
	if _, exists := r.modules[m.ID]; !exists {
		r.order = append(r.order, m.ID)
	}
	r.modules[m.ID] = &m
}

// Lookup returns a registered module.
func (r *Registry) Lookup(id string) (*Module, bool) {
	m, ok := r.modules[id]
	return m, ok
}

// Chain resolves module IDs into modules, failing on the first unknown ID.
func (r *Registry) Chain(ids []string) ([]*Module, error) {
	out := make([]*Module, 0, len(ids))
	for _, id := range ids {
		m, ok := r.modules[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownModule, id)
		}
		out = append(out, m)
	}
	return out, nil
}

// All returns the modules in registration order.
func (r *Registry) All() []*Module {
	out := make([]*Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}
	return out
}

// As converts module data to T. Data produced in-process is returned as is;
// data decoded from a hydration snapshot (maps, float64) is converted through
// JSON so components render the same markup in both cases.
func As[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// LoaderData returns the loader data of the node as T, or the zero value.
func LoaderData[T any](p Props) T {
	v, _ := As[T](p.LoaderData)
	return v
}

// ActionData returns the action data of the node as T, or the zero value.
func ActionData[T any](p Props) T {
	v, _ := As[T](p.ActionData)
	return v
}
