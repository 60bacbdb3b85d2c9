package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/trellis/pkg/bundle"
)

const defaultAssetPrefix = "/dist/"

// Renderer turns a module tree into an HTML document.
type Renderer struct {
	// Title is used when the request sets no "title" variable.
	Title string

	// AssetPrefix is the URL prefix of bundle files. Defaults to "/dist/".
	AssetPrefix string

	// Stylesheets are linked in the head of every document.
	Stylesheets []string

	// LiveReloadScript is appended to the body when set.
	LiveReloadScript string
}

// Body renders the nested module tree: layouts outside, leaf innermost.
func (r *Renderer) Body(ctx context.Context, w io.Writer, t *Tree) error {
	root := r.compose(t, 0)
	if root == nil {
		return nil
	}
	return root.Render(ctx, w)
}

// compose builds the component of node i with compose(i+1) as its children.
// Data-only modules contribute nothing and pass their subtree through.
func (r *Renderer) compose(t *Tree, i int) templ.Component {
	if i >= len(t.Nodes) {
		return nil
	}
	child := r.compose(t, i+1)
	n := t.Nodes[i]
	if n.Module == nil || n.Module.IsDataOnly() {
		return child
	}

	props := nodeProps(t, n)
	if child == nil || n.Module.AcceptsChildren {
		props.Children = child
		return n.Module.Component(props)
	}

	// A layout that does not render children is rendered once, then its
	// subtree follows as a sibling.
	self := n.Module.Component(props)
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := self.Render(ctx, w); err != nil {
			return err
		}
		return child.Render(ctx, w)
	})
}

func nodeProps(t *Tree, n Node) Props {
	return Props{
		LoaderData: n.LoaderData,
		ActionData: n.ActionData,
		Vars:       t.Vars,
		ModulePath: n.ModulePath,
	}
}

// Document renders a complete page for t. The body is rendered first, so a
// failing component produces no output at all.
func (r *Renderer) Document(ctx context.Context, w io.Writer, t *Tree, m *bundle.Manifest) error {
	var body bytes.Buffer
	if err := r.Body(ctx, &body, t); err != nil {
		return fmt.Errorf("render body: %w", err)
	}

	var head bytes.Buffer
	for _, n := range t.Nodes {
		if n.Module == nil || n.Module.Head == nil {
			continue
		}
		if err := n.Module.Head(nodeProps(t, n)).Render(ctx, &head); err != nil {
			return fmt.Errorf("render head of %s: %w", n.ModulePath, err)
		}
	}

	files, routes := r.assets(t, m)
	payload, err := json.Marshal(t.Snapshot(files, routes))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	var doc bytes.Buffer
	doc.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	doc.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	fmt.Fprintf(&doc, "<title>%s</title>", templ.EscapeString(r.title(t.Vars)))
	doc.Write(head.Bytes())
	for _, href := range r.Stylesheets {
		fmt.Fprintf(&doc, `<link rel="stylesheet" href="%s">`, templ.EscapeString(href))
	}
	if m != nil {
		for _, name := range m.Styles() {
			fmt.Fprintf(&doc, `<link rel="stylesheet" href="%s">`, templ.EscapeString(r.url(name)))
		}
		for _, name := range m.Scripts() {
			fmt.Fprintf(&doc, `<link rel="modulepreload" href="%s">`, templ.EscapeString(r.url(name)))
		}
	}
	doc.WriteString(`</head>`)

	if classes := BodyClasses(t.Vars); len(classes) > 0 {
		fmt.Fprintf(&doc, `<body class="%s">`, templ.EscapeString(strings.Join(classes, " ")))
	} else {
		doc.WriteString(`<body>`)
	}
	doc.WriteString(`<div id="root">`)
	doc.Write(body.Bytes())
	doc.WriteString(`</div>`)

	fmt.Fprintf(&doc, `<script>window.appContext = %s</script>`, payload)
	if m != nil && m.Entry != "" {
		doc.WriteString(`<script type="module">`)
		doc.WriteString(r.hydrationScript(t, m))
		doc.WriteString(`</script>`)
	}
	doc.WriteString(r.LiveReloadScript)
	doc.WriteString(`</body></html>`)

	_, err = w.Write(doc.Bytes())
	return err
}

// hydrationScript imports the entry and every route bundle of the tree,
// registers them on window.routeModules and starts hydration.
func (r *Renderer) hydrationScript(t *Tree, m *bundle.Manifest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "import { hydrate } from %q;", r.url(m.Entry))

	var refs []string
	for i, n := range t.Nodes {
		file, ok := routeFile(n, m)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "import * as route%d from %q;", i, r.url(file))
		refs = append(refs, fmt.Sprintf("%q: route%d", n.ModulePath, i))
	}
	fmt.Fprintf(&sb, "window.routeModules = {%s};hydrate();", strings.Join(refs, ","))
	return sb.String()
}

// assets returns the public URLs of all bundle files and the bundle URL of
// every module of the tree.
func (r *Renderer) assets(t *Tree, m *bundle.Manifest) ([]string, map[string]string) {
	if m == nil {
		return nil, nil
	}
	files := make([]string, 0, len(m.Files))
	for _, name := range m.Names() {
		files = append(files, r.url(name))
	}
	routes := make(map[string]string)
	for _, n := range t.Nodes {
		if file, ok := routeFile(n, m); ok {
			routes[n.ModulePath] = r.url(file)
		}
	}
	return files, routes
}

func routeFile(n Node, m *bundle.Manifest) (string, bool) {
	if n.Module == nil || n.Module.Source == "" {
		return "", false
	}
	file, ok := m.Routes[strings.TrimPrefix(n.Module.Source, "./")]
	return file, ok
}

func (r *Renderer) url(name string) string {
	prefix := r.AssetPrefix
	if prefix == "" {
		prefix = defaultAssetPrefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(name, "/")
}

func (r *Renderer) title(vars Variables) string {
	if s, ok := vars[VarTitle].(string); ok && s != "" {
		return s
	}
	return r.Title
}

// bundleRequest lists the client modules of a tree.
func bundleRequest(entry string, t *Tree) bundle.Request {
	req := bundle.Request{Entry: entry}
	seen := make(map[string]bool)
	for _, n := range t.Nodes {
		if n.Module == nil || n.Module.Source == "" || seen[n.Module.Source] {
			continue
		}
		seen[n.Module.Source] = true
		req.Modules = append(req.Modules, bundle.Module{
			Path:    n.Module.Source,
			Exports: n.Module.ClientExports(),
		})
	}
	return req
}
