package bundle

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"
)

// Sentinel errors.
var (
	ErrNoEntry     = errors.New("bundle: entry point is required")
	ErrBuildFailed = errors.New("bundle: build failed")
	ErrBadMetafile = errors.New("bundle: invalid metafile")
)

// Client-safe exports of a route module.
var allowedExports = []string{"default", "Head"}

// serverOnly matches imports that must never be bundled for the browser.
var serverOnly = regexp.MustCompile(`\.server(\.[jt]sx?)?$`)

// browserSuffix marks entry points that go through the export allow-list.
const browserSuffix = "?browser"

// Bundler builds client bundles for a module set.
type Bundler interface {
	Build(ctx context.Context, req Request) (*Manifest, error)
}

// Module is the client side of one route module.
type Module struct {
	// Path is the module source relative to the bundle root.
	Path string `json:"path"`

	// Exports lists the exports declared by the source.
	Exports []string `json:"exports"`
}

// Request is the input of a build.
type Request struct {
	// Entry is the client hydration entry point relative to the bundle root.
	Entry string `json:"entry"`

	Modules []Module `json:"modules"`
}

// AllowedExports filters exports down to the client-safe set, in a stable order.
func AllowedExports(exports []string) []string {
	out := make([]string, 0, len(allowedExports))
	for _, name := range allowedExports {
		if slices.Contains(exports, name) {
			out = append(out, name)
		}
	}
	return out
}

// IsServerOnly reports whether an import path follows the server-only
// naming convention.
func IsServerOnly(path string) bool {
	return serverOnly.MatchString(path)
}

// cleanPath strips a leading "./" the way esbuild reports input paths.
func cleanPath(p string) string {
	return strings.TrimPrefix(p, "./")
}
