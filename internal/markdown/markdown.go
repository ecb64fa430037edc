// Package markdown renders untrusted markdown into sanitized HTML for
// comment bodies.
package markdown

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// allowedTags is the whitelist applied to rendered comment HTML. Anything
// outside it (scripts, images, iframes, inline styles) is stripped.
var allowedTags = []string{
	"a", "abbr", "acronym", "b", "blockquote", "code", "em",
	"i", "li", "ol", "pre", "strong", "ul", "h1", "h2", "h3", "p",
}

var (
	renderer = goldmark.New(
		// Linkify turns bare URLs into anchors, matching the behaviour
		// commenters expect when pasting links.
		goldmark.WithExtensions(extension.Linkify),
	)
	policy = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedTags...)
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("title").OnElements("a", "abbr", "acronym")
	p.RequireNoFollowOnLinks(true)
	return p
}

// Render converts markdown source into sanitized HTML. The output is safe to
// embed verbatim in a page regardless of what the source contained.
func Render(source string) string {
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(source), &buf); err != nil {
		// Conversion failures are effectively impossible for in-memory
		// buffers; sanitize the raw source as a fallback.
		return policy.Sanitize(source)
	}
	return policy.Sanitize(buf.String())
}
