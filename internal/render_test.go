package internal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/trellis/internal"
	"github.com/dmitrymomot/trellis/pkg/bundle"
)

// element renders <tag>children</tag>.
func element(tag string) func(internal.Props) templ.Component {
	return func(p internal.Props) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			fmt.Fprintf(w, "<%s>", tag)
			if p.Children != nil {
				if err := p.Children.Render(ctx, w); err != nil {
					return err
				}
			}
			fmt.Fprintf(w, "</%s>", tag)
			return nil
		})
	}
}

type greeting struct {
	Message string   `json:"message"`
	Tags    []string `json:"tags"`
	Count   int      `json:"count"`
}

// greetingView renders loader and action data of its own node.
func greetingView(p internal.Props) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		g := internal.LoaderData[greeting](p)
		errs := internal.ActionData[internal.FormErrors](p)
		_, err := fmt.Fprintf(w, "<p data-module=%q>%s|%s|%d|%s</p>",
			p.ModulePath, templ.EscapeString(g.Message), strings.Join(g.Tags, ","), g.Count, errs.Errors["name"])
		return err
	})
}

func treeOf(mods ...*internal.Module) *internal.Tree {
	t := &internal.Tree{Vars: internal.Variables{}, Status: 200}
	for _, m := range mods {
		t.Nodes = append(t.Nodes, internal.Node{Module: m, ModulePath: m.ID})
	}
	return t
}

func renderBody(t *testing.T, r *internal.Renderer, tree *internal.Tree) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Body(context.Background(), &buf, tree))
	return buf.String()
}

func TestRenderer_Nesting(t *testing.T) {
	t.Parallel()

	layout := &internal.Module{ID: "layout", Component: element("layout"), AcceptsChildren: true}
	leaf := &internal.Module{ID: "leaf", Component: element("leaf"), AcceptsChildren: true}
	r := &internal.Renderer{}

	assert.Equal(t, "<layout><leaf></leaf></layout>", renderBody(t, r, treeOf(layout, leaf)))
	assert.Equal(t, "<leaf><layout></layout></leaf>", renderBody(t, r, treeOf(leaf, layout)))
}

func TestRenderer_RenderOnce(t *testing.T) {
	t.Parallel()

	var calls int
	shell := &internal.Module{
		ID: "shell",
		Component: func(internal.Props) templ.Component {
			return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
				calls++
				_, err := io.WriteString(w, "<header></header>")
				return err
			})
		},
	}
	leaf := &internal.Module{ID: "leaf", Component: element("leaf")}

	body := renderBody(t, &internal.Renderer{}, treeOf(shell, leaf))
	assert.Equal(t, "<header></header><leaf></leaf>", body)
	assert.Equal(t, 1, calls)
}

func TestRenderer_DataOnlyModulesPassThrough(t *testing.T) {
	t.Parallel()

	guard := &internal.Module{ID: "guard"}
	layout := &internal.Module{ID: "layout", Component: element("layout"), AcceptsChildren: true}
	leaf := &internal.Module{ID: "leaf", Component: element("leaf")}

	assert.Equal(t, "<layout><leaf></leaf></layout>", renderBody(t, &internal.Renderer{}, treeOf(guard, layout, leaf)))
}

func TestHydrate_SameMarkup(t *testing.T) {
	t.Parallel()

	registry := internal.NewRegistry(
		internal.Module{ID: "layout", Component: element("main"), AcceptsChildren: true},
		internal.Module{ID: "leaf", Component: greetingView},
	)
	chain, err := registry.Chain([]string{"layout", "leaf"})
	require.NoError(t, err)

	tree := treeOf(chain...)
	tree.Vars["title"] = "Users"
	tree.Vars[internal.VarBodyClasses] = []string{"admin"}
	tree.Nodes[1].LoaderData = greeting{Message: "<b>hi</b>", Tags: []string{"a", "b"}, Count: 3}
	tree.Nodes[1].ActionData = internal.FormErrors{Errors: map[string]string{"name": "required"}, Values: map[string]string{}}

	r := &internal.Renderer{}
	server := renderBody(t, r, tree)

	payload, err := json.Marshal(tree.Snapshot(nil, nil))
	require.NoError(t, err)
	snapshot, err := internal.ParseSnapshot(payload)
	require.NoError(t, err)
	hydrated, err := internal.Hydrate(registry, snapshot)
	require.NoError(t, err)

	assert.Equal(t, server, renderBody(t, r, hydrated))
	assert.Equal(t, `<main><p data-module="leaf">&lt;b&gt;hi&lt;/b&gt;|a,b|3|required</p></main>`, server)
	assert.Equal(t, []string{"admin"}, internal.BodyClasses(hydrated.Vars))
}

func TestHydrate_UnknownModule(t *testing.T) {
	t.Parallel()

	_, err := internal.Hydrate(internal.NewRegistry(), internal.Snapshot{
		ModuleTree: []internal.SnapshotNode{{ModulePath: "gone"}},
	})
	require.ErrorIs(t, err, internal.ErrUnknownModule)
}

func TestRenderer_Document(t *testing.T) {
	t.Parallel()

	leaf := &internal.Module{
		ID:        "routes/admin",
		Source:    "routes/admin.js",
		Exports:   []string{"default", "Head", "loader"},
		Component: greetingView,
		Head: func(internal.Props) templ.Component {
			return templ.Raw(`<meta name="robots" content="noindex">`)
		},
	}
	tree := treeOf(leaf)
	tree.Vars[internal.VarBodyClasses] = []string{"admin", "dark"}
	tree.Nodes[0].LoaderData = greeting{Message: "</script><script>alert(1)</script>"}

	manifest := &bundle.Manifest{
		Entry:  "entry.client-AAAA.js",
		Routes: map[string]string{"routes/admin.js": "routes/admin-BBBB.js"},
		Files: []bundle.File{
			{Name: "entry.client-AAAA.js"},
			{Name: "routes/admin-BBBB.js"},
			{Name: "_assets/admin-CCCC.css"},
		},
	}

	r := &internal.Renderer{Title: "trellis", Stylesheets: []string{"/tailwind.css"}, LiveReloadScript: "<script>/*lr*/</script>"}
	var buf bytes.Buffer
	require.NoError(t, r.Document(context.Background(), &buf, tree, manifest))
	doc := buf.String()

	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, "<title>trellis</title>")
	assert.Contains(t, doc, `<meta name="robots" content="noindex">`)
	assert.Contains(t, doc, `<link rel="stylesheet" href="/tailwind.css">`)
	assert.Contains(t, doc, `<link rel="stylesheet" href="/dist/_assets/admin-CCCC.css">`)
	assert.Contains(t, doc, `<link rel="modulepreload" href="/dist/entry.client-AAAA.js">`)
	assert.Contains(t, doc, `<body class="admin dark">`)
	assert.Contains(t, doc, `import { hydrate } from "/dist/entry.client-AAAA.js";`)
	assert.Contains(t, doc, `import * as route0 from "/dist/routes/admin-BBBB.js";`)
	assert.Contains(t, doc, `window.routeModules = {"routes/admin": route0};hydrate();`)
	assert.Contains(t, doc, "<script>/*lr*/</script></body></html>")
	assert.NotContains(t, doc, "</script><script>alert(1)")

	start := strings.Index(doc, "window.appContext = ") + len("window.appContext = ")
	end := strings.Index(doc[start:], "</script>")
	snapshot, err := internal.ParseSnapshot([]byte(doc[start : start+end]))
	require.NoError(t, err)
	assert.Equal(t, "routes/admin", snapshot.ModuleTree[0].ModulePath)
	assert.Equal(t, "/dist/routes/admin-BBBB.js", snapshot.Routes["routes/admin"])
	assert.Len(t, snapshot.Files, 3)
}

func TestRenderer_DocumentTitleVar(t *testing.T) {
	t.Parallel()

	tree := treeOf(&internal.Module{ID: "leaf", Component: element("leaf")})
	tree.Vars[internal.VarTitle] = "Posts & Pages"

	var buf bytes.Buffer
	require.NoError(t, (&internal.Renderer{Title: "trellis"}).Document(context.Background(), &buf, tree, nil))
	assert.Contains(t, buf.String(), "<title>Posts &amp; Pages</title>")
	assert.Contains(t, buf.String(), `<body><div id="root"><leaf></leaf></div>`)
	assert.NotContains(t, buf.String(), `type="module"`)
}
