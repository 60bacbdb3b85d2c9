// Package bundle builds the browser bundles of route modules.
//
// A Bundler receives the client entry point and the modules of a matched
// route chain and returns a Manifest: the emitted files, the file of the
// entry point and the file of every route module.
//
// Only the allow-listed exports of a module ("default" and "Head") reach the
// browser. Every import matching the server-only naming convention
// (*.server.js, *.server.ts, ...) is replaced by an empty module, so server
// secrets never end up in client code.
//
// Esbuild is the production implementation. Cached wraps any Bundler with a
// content-addressed cache: identical module sets with identical sources reuse
// the previous manifest.
//
//	b := bundle.NewCached(
//	    bundle.NewEsbuild("web", "dist", bundle.WithMinify(true)),
//	    cache.NewMemory[*bundle.Manifest](),
//	    "web",
//	)
//	manifest, err := b.Build(ctx, bundle.Request{
//	    Entry:   "entry.client.js",
//	    Modules: []bundle.Module{{Path: "routes/admin.js", Exports: []string{"default", "Head"}}},
//	})
package bundle
