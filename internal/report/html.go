package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

const htmlPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; max-width: 1100px; margin: 2em auto; padding: 0 1em; line-height: 1.6; color: #24292e; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #d0d7de; padding: 6px 12px; }
th { background: #f6f8fa; }
code, pre { background: #f6f8fa; }
pre { padding: 1em; overflow-x: auto; }
</style>
</head>
<body>
%s
</body>
</html>
`

// MarkdownToHTML converts Markdown to an HTML fragment
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderHTML wraps rendered Markdown in a standalone page
func RenderHTML(title, src string) (string, error) {
	body, err := MarkdownToHTML(src)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(htmlPage, html.EscapeString(title), body), nil
}
