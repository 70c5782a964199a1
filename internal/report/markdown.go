package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Document accumulates a Markdown report
type Document struct {
	b strings.Builder
}

// NewDocument starts a report with a top-level title and a generation stamp
func NewDocument(title string, generated time.Time) *Document {
	d := &Document{}
	d.b.WriteString("# " + title + "\n\n")
	if !generated.IsZero() {
		d.b.WriteString("*Generated " + generated.Format("2006-01-02 15:04:05") + "*\n\n")
	}
	return d
}

// Heading writes a heading of the given level
func (d *Document) Heading(level int, text string) *Document {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	d.b.WriteString(strings.Repeat("#", level) + " " + text + "\n\n")
	return d
}

// Paragraph writes a block of text
func (d *Document) Paragraph(format string, args ...interface{}) *Document {
	d.b.WriteString(fmt.Sprintf(format, args...) + "\n\n")
	return d
}

// Bullets writes an unordered list
func (d *Document) Bullets(items ...string) *Document {
	if len(items) == 0 {
		return d
	}
	for _, it := range items {
		d.b.WriteString("- " + it + "\n")
	}
	d.b.WriteString("\n")
	return d
}

// KeyValues writes a bold-key bullet list in the given key order
func (d *Document) KeyValues(keys []string, values map[string]string) *Document {
	items := make([]string, 0, len(keys))
	for _, k := range keys {
		items = append(items, fmt.Sprintf("**%s:** %s", k, values[k]))
	}
	return d.Bullets(items...)
}

// Table writes a Markdown table, or a note when it is empty
func (d *Document) Table(t Table) *Document {
	if len(t.Rows) == 0 {
		d.b.WriteString("_No data._\n\n")
		return d
	}
	d.b.WriteString(MarkdownTable(t) + "\n")
	return d
}

// Image embeds a chart by relative path
func (d *Document) Image(alt, path string) *Document {
	d.b.WriteString(fmt.Sprintf("![%s](%s)\n\n", alt, filepath.ToSlash(path)))
	return d
}

// Code writes a fenced code block
func (d *Document) Code(lang, body string) *Document {
	d.b.WriteString("```" + lang + "\n" + strings.TrimRight(body, "\n") + "\n```\n\n")
	return d
}

// String returns the accumulated Markdown
func (d *Document) String() string { return d.b.String() }

// Save writes the document to path, creating parent directories
func (d *Document) Save(path string) error {
	return SaveText(path, d.String())
}

// SaveText writes text to path, creating parent directories
func SaveText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
