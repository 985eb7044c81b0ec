package conversation

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	moreMarker = "####"
	moreTag    = "<!--more-->"
)

// markdown must keep raw HTML so the read-more comment survives rendering.
var markdown = goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))

// ReplaceMoreMarkers converts every break marker in the body into the
// canonical read-more tag, trimming the whitespace around each occurrence.
func ReplaceMoreMarkers(body string) string {
	for strings.Contains(body, moreMarker) {
		parts := strings.SplitN(body, moreMarker, 2)
		body = strings.TrimSpace(parts[0]) + " " + moreTag + " " + strings.TrimSpace(parts[1])
	}
	return body
}

// RenderMarkdown converts a plain-text body written in Markdown to HTML.
// Markers must already be replaced: a surviving "####" would parse as a
// heading.
func RenderMarkdown(body string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
