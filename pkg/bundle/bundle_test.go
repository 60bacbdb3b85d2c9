package bundle_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/trellis/pkg/bundle"
	"github.com/dmitrymomot/trellis/pkg/cache"
)

func TestBrowserModule(t *testing.T) {
	t.Parallel()

	t.Run("re-exports only allowed names", func(t *testing.T) {
		t.Parallel()
		got := bundle.BrowserModule("./routes/admin.js", []string{"default", "loader", "action", "Head"})
		assert.Equal(t, `export { default, Head } from "./routes/admin.js";`, got)
	})

	t.Run("empty module without client exports", func(t *testing.T) {
		t.Parallel()
		got := bundle.BrowserModule("routes/logout.js", []string{"loader", "action"})
		assert.Equal(t, "module.exports = {};", got)
	})

	t.Run("default only", func(t *testing.T) {
		t.Parallel()
		got := bundle.BrowserModule("routes/page.js", []string{"default"})
		assert.Equal(t, `export { default } from "./routes/page.js";`, got)
	})
}

func TestIsServerOnly(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"./db.server":            true,
		"./db.server.js":         true,
		"./db.server.ts":         true,
		"../lib/auth.server.tsx": true,
		"./server.js":            false,
		"./db.js":                false,
		"./db.server.css":        false,
	}
	for path, want := range tests {
		assert.Equal(t, want, bundle.IsServerOnly(path), path)
	}
}

const metafileJSON = `{
  "inputs": {
    "lib/dom.js": {"bytes": 10},
    "entry.client.js": {"bytes": 20},
    "routes/admin.js": {"bytes": 70},
    "browser-route:routes/admin.js?browser": {"bytes": 0},
    "server-only:./db.server.js": {"bytes": 0}
  },
  "outputs": {
    "../dist/entry.client-AAAA.js": {
      "bytes": 120,
      "entryPoint": "entry.client.js",
      "inputs": {"lib/dom.js": {"bytesInOutput": 10}, "entry.client.js": {"bytesInOutput": 20}}
    },
    "../dist/routes/admin-BBBB.js": {
      "bytes": 80,
      "entryPoint": "browser-route:routes/admin.js?browser",
      "inputs": {"routes/admin.js": {"bytesInOutput": 70}, "browser-route:routes/admin.js?browser": {"bytesInOutput": 0}}
    },
    "../dist/_shared/chunk-CCCC.js": {
      "bytes": 40,
      "inputs": {"lib/format.js": {"bytesInOutput": 40}}
    },
    "../dist/_assets/admin-DDDD.css": {
      "bytes": 30,
      "inputs": {"routes/admin.css": {"bytesInOutput": 30}}
    }
  }
}`

func TestParseMetafile(t *testing.T) {
	t.Parallel()

	m, err := bundle.ParseMetafile([]byte(metafileJSON), "../dist", "entry.client.js")
	require.NoError(t, err)

	assert.Equal(t, "entry.client-AAAA.js", m.Entry)
	assert.Equal(t, map[string]string{"routes/admin.js": "routes/admin-BBBB.js"}, m.Routes)
	assert.Equal(t, []string{
		"entry.client-AAAA.js",
		"routes/admin-BBBB.js",
		"_shared/chunk-CCCC.js",
		"_assets/admin-DDDD.css",
	}, m.Names())

	// Input is the last input of each output, in metafile order.
	assert.Equal(t, "entry.client.js", m.Files[0].Input)
	assert.Equal(t, "browser-route:routes/admin.js?browser", m.Files[1].Input)
	assert.Equal(t, "lib/format.js", m.Files[2].Input)

	assert.Equal(t, []string{"entry.client-AAAA.js", "routes/admin-BBBB.js", "_shared/chunk-CCCC.js"}, m.Scripts())
	assert.Equal(t, []string{"_assets/admin-DDDD.css"}, m.Styles())

	assert.Equal(t, map[string]string{"lib/dom.js": "", "entry.client.js": "", "routes/admin.js": ""}, m.Sources,
		"virtual modules are not sources")
}

func TestParseMetafile_Errors(t *testing.T) {
	t.Parallel()

	_, err := bundle.ParseMetafile([]byte(`{"outputs": [`), "dist", "entry.client.js")
	require.ErrorIs(t, err, bundle.ErrBadMetafile)

	_, err = bundle.ParseMetafile([]byte(`{"outputs": {}}`), "dist", "entry.client.js")
	require.ErrorIs(t, err, bundle.ErrBadMetafile)
}

type countingBundler struct {
	calls atomic.Int32
	err   error
}

func (b *countingBundler) Build(_ context.Context, req bundle.Request) (*bundle.Manifest, error) {
	b.calls.Add(1)
	if b.err != nil {
		return nil, b.err
	}
	return &bundle.Manifest{Entry: req.Entry, Routes: map[string]string{}}, nil
}

// importingBundler reports deps as files read by the build, the way esbuild
// lists imported files in its metafile.
type importingBundler struct {
	root  string
	deps  []string
	calls atomic.Int32
}

func (b *importingBundler) Build(_ context.Context, req bundle.Request) (*bundle.Manifest, error) {
	b.calls.Add(1)
	m := &bundle.Manifest{Entry: req.Entry, Routes: map[string]string{}, Sources: map[string]string{}}
	for _, d := range b.deps {
		m.Sources[d] = ""
	}
	return m, m.Fingerprint(b.root)
}

func writeSources(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "routes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "entry.client.js"), []byte("export function hydrate() {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "routes", "admin.js"), []byte("export default function Admin() {}"), 0o644))
	return root
}

func TestCached(t *testing.T) {
	t.Parallel()

	root := writeSources(t)
	req := bundle.Request{
		Entry:   "entry.client.js",
		Modules: []bundle.Module{{Path: "routes/admin.js", Exports: []string{"default"}}},
	}

	t.Run("reuses manifest for identical sources", func(t *testing.T) {
		next := &countingBundler{}
		b := bundle.NewCached(next, cache.NewMemory[*bundle.Manifest](), root)

		first, err := b.Build(context.Background(), req)
		require.NoError(t, err)
		second, err := b.Build(context.Background(), req)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, int32(1), next.calls.Load())
	})

	t.Run("rebuilds when a source changes", func(t *testing.T) {
		next := &countingBundler{}
		b := bundle.NewCached(next, cache.NewMemory[*bundle.Manifest](), root)

		_, err := b.Build(context.Background(), req)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(root, "routes", "admin.js"), []byte("export default function Admin2() {}"), 0o644))
		_, err = b.Build(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, int32(2), next.calls.Load())
	})

	t.Run("rebuilds when an imported file changes", func(t *testing.T) {
		dir := writeSources(t)
		dep := filepath.Join(dir, "routes", "dep.js")
		require.NoError(t, os.WriteFile(dep, []byte("export const n = 1;"), 0o644))

		next := &importingBundler{root: dir, deps: []string{"routes/admin.js", "routes/dep.js"}}
		b := bundle.NewCached(next, cache.NewMemory[*bundle.Manifest](), dir)

		keyBefore, err := bundle.Key(dir, req)
		require.NoError(t, err)
		_, err = b.Build(context.Background(), req)
		require.NoError(t, err)
		_, err = b.Build(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, int32(1), next.calls.Load())

		require.NoError(t, os.WriteFile(dep, []byte("export const n = 2;"), 0o644))
		keyAfter, err := bundle.Key(dir, req)
		require.NoError(t, err)
		require.Equal(t, keyBefore, keyAfter, "imports are not part of the key")

		m, err := b.Build(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, int32(2), next.calls.Load())
		assert.False(t, m.Stale(dir))

		_, err = b.Build(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, int32(2), next.calls.Load())
	})

	t.Run("does not cache failures", func(t *testing.T) {
		next := &countingBundler{err: errors.New("syntax error")}
		b := bundle.NewCached(next, cache.NewMemory[*bundle.Manifest](), root)

		_, err := b.Build(context.Background(), req)
		require.Error(t, err)
		_, err = b.Build(context.Background(), req)
		require.Error(t, err)

		assert.Equal(t, int32(2), next.calls.Load())
	})

	t.Run("missing source", func(t *testing.T) {
		b := bundle.NewCached(&countingBundler{}, cache.NewMemory[*bundle.Manifest](), root)
		_, err := b.Build(context.Background(), bundle.Request{Entry: "missing.js"})
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestKey_ExportsOutsideAllowListIgnored(t *testing.T) {
	t.Parallel()

	root := writeSources(t)
	a, err := bundle.Key(root, bundle.Request{
		Entry:   "entry.client.js",
		Modules: []bundle.Module{{Path: "routes/admin.js", Exports: []string{"default", "loader"}}},
	})
	require.NoError(t, err)
	b, err := bundle.Key(root, bundle.Request{
		Entry:   "entry.client.js",
		Modules: []bundle.Module{{Path: "./routes/admin.js", Exports: []string{"default"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEsbuild_RequiresEntry(t *testing.T) {
	t.Parallel()

	_, err := bundle.NewEsbuild(t.TempDir(), t.TempDir()).Build(context.Background(), bundle.Request{})
	require.ErrorIs(t, err, bundle.ErrNoEntry)
}
