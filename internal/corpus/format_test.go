package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Find(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		source      string
		contentType string
		want        string
	}{
		{"https://en.wikipedia.org/wiki/Laksa", "text/html; charset=UTF-8", "wikipedia"},
		{"https://example.com/page", "text/html", "html"},
		{"docs/report.HTML", "", "html"},
		{"docs/notes.md", "", "markdown"},
		{"https://example.com/raw", "text/markdown", "markdown"},
		{"docs/policy.txt", "", "text"},
		{"https://example.com/data", "application/octet-stream", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Find(tt.source, tt.contentType).Name())
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.txt"))
	assert.True(t, Supported("a.MD"))
	assert.True(t, Supported("a.htm"))
	assert.False(t, Supported("a.pdf"))
	assert.False(t, Supported("Makefile"))
}

func TestMarkdownFormat_Text(t *testing.T) {
	in := "# Financial Report 2024\n\nRevenue grew 15%.\n\n```\ncode\n```\n> Costs fell 5%."

	text, err := (&MarkdownFormat{}).Text([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, "Financial Report 2024.\n\nRevenue grew 15%.\n\ncode\nCosts fell 5%.", text)
}

func TestWikipediaFormat_Text(t *testing.T) {
	page := `<html><body>
<div id="siteNotice">Donate today</div>
<div class="mw-parser-output">
  <p>Laksa is a spicy noodle soup.<sup class="reference"><a href="#cite-1">[1]</a></sup> It is popular in
  Malaysia.</p>
  <table><tr><td>Infobox</td></tr></table>
  <p>It has many variants.</p>
</div>
</body></html>`

	text, err := (&WikipediaFormat{}).Text([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, "Laksa is a spicy noodle soup. It is popular in Malaysia.\n\nIt has many variants.", text)
}

func TestWikipediaFormat_FallsBackToVisibleText(t *testing.T) {
	text, err := (&WikipediaFormat{}).Text([]byte("<html><body><p>Plain page.</p></body></html>"))
	require.NoError(t, err)
	assert.Equal(t, "Plain page.", text)
}

func TestSample(t *testing.T) {
	docs := Sample()
	assert.Len(t, docs, 5)
	assert.Contains(t, docs[1], "15% increase in revenue")
}
