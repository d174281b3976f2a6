// ABOUTME: Markdown to HTML rendering for Matrix formatted message bodies
// ABOUTME: Wraps goldmark with GFM extensions suited to chat replies

package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// md is configured once; goldmark.Markdown is safe for concurrent use.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Render converts markdown source to the HTML Matrix clients expect in
// formatted_body. On conversion failure the raw source is returned so
// the reply still reaches the room.
func Render(source string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return source
	}
	return strings.TrimSpace(buf.String())
}

// IsPlain reports whether rendering source produced nothing beyond a
// single paragraph of the original text, meaning a formatted_body would
// add no information over the plain body.
func IsPlain(source string) bool {
	rendered := Render(source)
	stripped := strings.TrimSuffix(strings.TrimPrefix(rendered, "<p>"), "</p>")
	return !strings.ContainsAny(stripped, "<>") && stripped == source
}
