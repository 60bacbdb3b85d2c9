// Package cms is a small content management system built from trellis
// route modules.
//
// It contributes the admin area (dashboard, users, posts, field groups,
// settings), the login and logout modules and the page template that
// renders stored posts. Published posts become runtime routes: Rebuild
// reads every post from the Store and swaps the route table in one step.
//
//	store := memstore.New()
//	site := cms.New(store, trellis.NewRuntimeTable(), cms.WithLogger(log))
//	app := trellis.New(append(opts, site.Options()...)...)
//
// Pages are served at /<slug>/, every other post type at /<type>/<slug>/.
// Use WithTemplate to render a post type through extra layout modules.
//
// Saving content enqueues a rebuild job when background jobs are
// configured and rebuilds inline otherwise.
//
// Two Store implementations ship with the package: memstore for tests and
// local development, and pgstore backed by PostgreSQL.
package cms
