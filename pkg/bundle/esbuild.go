package bundle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	browserNamespace = "browser-route"
	serverNamespace  = "server-only"
	emptyModule      = "module.exports = {};"
)

// EsbuildOption configures the esbuild bundler.
type EsbuildOption func(*Esbuild)

// WithMinify toggles minification of the emitted files.
func WithMinify(enabled bool) EsbuildOption {
	return func(e *Esbuild) {
		e.minify = enabled
	}
}

// WithSourcemap emits linked source maps next to the bundles.
func WithSourcemap(enabled bool) EsbuildOption {
	return func(e *Esbuild) {
		e.sourcemap = enabled
	}
}

// Esbuild bundles route modules with esbuild.
type Esbuild struct {
	root      string
	outDir    string
	minify    bool
	sourcemap bool
}

// NewEsbuild returns a bundler reading sources under root and writing
// bundles to outDir.
func NewEsbuild(root, outDir string, opts ...EsbuildOption) *Esbuild {
	e := &Esbuild{root: root, outDir: outDir}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build runs one esbuild build for the entry and the route modules.
func (e *Esbuild) Build(ctx context.Context, req Request) (*Manifest, error) {
	if req.Entry == "" {
		return nil, ErrNoEntry
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(e.root)
	if err != nil {
		return nil, fmt.Errorf("bundle: resolve root: %w", err)
	}
	outDir, err := filepath.Abs(e.outDir)
	if err != nil {
		return nil, fmt.Errorf("bundle: resolve output dir: %w", err)
	}
	outPrefix, err := filepath.Rel(root, outDir)
	if err != nil {
		return nil, fmt.Errorf("bundle: output dir: %w", err)
	}

	exports := make(map[string][]string, len(req.Modules))
	entryPoints := []string{"./" + cleanPath(req.Entry)}
	for _, m := range req.Modules {
		p := cleanPath(m.Path)
		exports[p] = m.Exports
		entryPoints = append(entryPoints, p+browserSuffix)
	}

	opts := api.BuildOptions{
		AbsWorkingDir: root,
		EntryPoints:   entryPoints,
		Outdir:        outDir,
		Format:        api.FormatESModule,
		Platform:      api.PlatformBrowser,
		Bundle:        true,
		Splitting:     true,
		Write:         true,
		Metafile:      true,
		EntryNames:    "[dir]/[name]-[hash]",
		ChunkNames:    "_shared/[name]-[hash]",
		AssetNames:    "_assets/[name]-[hash]",
		LogLevel:      api.LogLevelSilent,
		Plugins: []api.Plugin{
			browserRoutesPlugin(root, exports),
			serverOnlyPlugin(),
		},
	}
	if e.minify {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}
	if e.sourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}

	result := api.Build(opts)
	if len(result.Errors) > 0 {
		errs := make([]error, 0, len(result.Errors)+1)
		errs = append(errs, ErrBuildFailed)
		for _, msg := range result.Errors {
			errs = append(errs, errors.New(msg.Text))
		}
		return nil, errors.Join(errs...)
	}

	m, err := ParseMetafile([]byte(result.Metafile), filepath.ToSlash(outPrefix), req.Entry)
	if err != nil {
		return nil, err
	}
	if err := m.Fingerprint(root); err != nil {
		return nil, err
	}
	return m, nil
}

// browserRoutesPlugin turns "<module>?browser" entry points into virtual
// modules that re-export only the client-safe exports of the module.
func browserRoutesPlugin(root string, exports map[string][]string) api.Plugin {
	return api.Plugin{
		Name: "browser-route-modules",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `\?browser$`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      cleanPath(args.Path),
						Namespace: browserNamespace,
					}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: browserNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					source := strings.TrimSuffix(args.Path, browserSuffix)
					contents := BrowserModule(source, exports[source])
					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: root,
						Loader:     api.LoaderJS,
					}, nil
				})
		},
	}
}

// serverOnlyPlugin replaces every server-only import with an empty module.
func serverOnlyPlugin() api.Plugin {
	return api.Plugin{
		Name: "empty-modules",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: serverOnly.String()},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{Path: args.Path, Namespace: serverNamespace}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: serverNamespace},
				func(api.OnLoadArgs) (api.OnLoadResult, error) {
					contents := emptyModule
					return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
				})
		},
	}
}

// BrowserModule returns the source of the virtual client module for a route
// module. Exports outside the allow-list are never re-exported.
func BrowserModule(source string, exports []string) string {
	allowed := AllowedExports(exports)
	if len(allowed) == 0 {
		return emptyModule
	}
	return fmt.Sprintf("export { %s } from %q;", strings.Join(allowed, ", "), "./"+cleanPath(source))
}
