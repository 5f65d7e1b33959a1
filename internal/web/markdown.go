package web

import (
	"html/template"

	"gitlab.com/golang-commonmark/markdown"
)

// renderer turns plan Markdown into HTML. Raw HTML in the model output is not
// passed through.
var renderer = markdown.New(
	markdown.HTML(false),
	markdown.Tables(true),
	markdown.Linkify(true),
	markdown.Typographer(false),
)

func renderMarkdown(src string) template.HTML {
	return template.HTML(renderer.RenderToString([]byte(src)))
}
