// Package markdown renders Markdown field values into sanitized HTML.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/dmitrymomot/trellis/pkg/sanitizer"
)

// Renderer converts Markdown to HTML safe to embed in a page.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a renderer with GitHub flavored extensions.
// Raw HTML in the source is passed to the sanitizer rather than escaped.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Render converts src to sanitized HTML.
func (r *Renderer) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	return sanitizer.SanitizeContent(buf.String()), nil
}

var defaultRenderer = New()

// Render converts src with the default renderer.
func Render(src string) (string, error) {
	return defaultRenderer.Render(src)
}
