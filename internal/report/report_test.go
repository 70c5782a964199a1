package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agency-insights/internal/stats"
)

func sampleTable() Table {
	return Table{
		Headers: []string{"STATE_ABBR", "premium"},
		Rows: [][]string{
			{"OH", "340000"},
			{"IN", "745000"},
		},
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in       float64
		decimals int
		want     string
	}{
		{1.5, 2, "1.5"},
		{2, 2, "2"},
		{1.239, 2, "1.24"},
		{-0.0001, 2, "0"},
		{math.NaN(), 2, ""},
		{math.Inf(1), 2, "inf"},
		{1234567, 0, "1234567"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFloat(tt.in, tt.decimals))
	}
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234,567", FormatMoney(1234567.2))
	assert.Equal(t, "$999", FormatMoney(999))
	assert.Equal(t, "-$1,000", FormatMoney(-1000))
	assert.Equal(t, "n/a", FormatMoney(math.NaN()))
}

func TestFromGrouped(t *testing.T) {
	g := &stats.Grouped{
		KeyNames: []string{"STATE_ABBR"},
		Columns:  []string{"mean"},
		Rows:     []stats.GroupRow{{Key: []string{"OH"}, Values: []float64{1.23456}}},
	}
	tbl := FromGrouped(g, 2)
	assert.Equal(t, []string{"STATE_ABBR", "mean"}, tbl.Headers)
	assert.Equal(t, [][]string{{"OH", "1.23"}}, tbl.Rows)
	assert.Equal(t, 1, tbl.Len())
}

func TestSaveCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.csv")
	require.NoError(t, SaveCSV(path, sampleTable()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "STATE_ABBR,premium\nOH,340000\nIN,745000\n", string(data))
}

func TestMarkdownTable(t *testing.T) {
	tbl := Table{Headers: []string{"a", "b"}, Rows: [][]string{{"x|y"}, {"1", "2"}}}
	md := MarkdownTable(tbl)
	assert.Equal(t, "| a | b |\n| --- | --- |\n| x\\|y |  |\n| 1 | 2 |\n", md)
	assert.Equal(t, "", MarkdownTable(Table{}))
}

func TestDocument(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := NewDocument("Quality", ts).
		Heading(2, "Missing").
		Paragraph("%d rows", 12).
		Bullets("one", "two").
		KeyValues([]string{"Rows"}, map[string]string{"Rows": "12"}).
		Table(sampleTable()).
		Table(Table{Headers: []string{"x"}}).
		Image("chart", filepath.Join("charts", "a.png")).
		Code("text", "hello\n")

	md := doc.String()
	assert.True(t, strings.HasPrefix(md, "# Quality\n\n*Generated 2024-03-01 12:00:00*"))
	assert.Contains(t, md, "## Missing")
	assert.Contains(t, md, "12 rows")
	assert.Contains(t, md, "- two\n")
	assert.Contains(t, md, "**Rows:** 12")
	assert.Contains(t, md, "| OH | 340000 |")
	assert.Contains(t, md, "_No data._")
	assert.Contains(t, md, "![chart](charts/a.png)")
	assert.Contains(t, md, "```text\nhello\n```")

	path := filepath.Join(t.TempDir(), "out", "q.md")
	require.NoError(t, doc.Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, md, string(data))
}

func TestRenderHTML(t *testing.T) {
	page, err := RenderHTML("Report <1>", "# Title\n\n"+MarkdownTable(sampleTable()))
	require.NoError(t, err)
	assert.Contains(t, page, "<title>Report &lt;1&gt;</title>")
	assert.Contains(t, page, `<h1 id="title">Title</h1>`)
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<td>OH</td>")
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, sampleTable())
	out := buf.String()
	assert.Contains(t, out, "STATE ABBR")
	assert.Contains(t, out, "745000")
}
