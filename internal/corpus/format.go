package corpus

import (
	"bytes"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/credence/internal/util"
)

// Format turns raw document bytes into corpus text
type Format interface {
	// Name returns the format name
	Name() string

	// CanHandle checks if this format applies to the source and content type
	CanHandle(source string, contentType string) bool

	// Text extracts the document text
	Text(data []byte) (string, error)
}

// Registry picks a Format for a document
type Registry struct {
	formats  []Format
	fallback Format
}

// NewRegistry creates a registry with the built-in formats
func NewRegistry() *Registry {
	r := &Registry{}

	r.Register(&WikipediaFormat{})
	r.Register(&HTMLFormat{})
	r.Register(&MarkdownFormat{})

	r.fallback = &PlainFormat{}
	return r
}

// Register adds a format; earlier registrations take precedence
func (r *Registry) Register(f Format) {
	r.formats = append(r.formats, f)
}

// Find returns the first format that handles the source, or plain text
func (r *Registry) Find(source string, contentType string) Format {
	for _, f := range r.formats {
		if f.CanHandle(source, contentType) {
			return f
		}
	}
	return r.fallback
}

// Supported reports whether a file extension is loaded from directories
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown", ".html", ".htm":
		return true
	}
	return false
}

// PlainFormat passes text through, trimmed
type PlainFormat struct{}

// Name returns the format name
func (f *PlainFormat) Name() string { return "text" }

// CanHandle always returns true (fallback format)
func (f *PlainFormat) CanHandle(source, contentType string) bool { return true }

// Text returns the trimmed document
func (f *PlainFormat) Text(data []byte) (string, error) {
	return strings.TrimSpace(string(data)), nil
}

// MarkdownFormat drops heading markers and fenced-code delimiters
type MarkdownFormat struct{}

// Name returns the format name
func (f *MarkdownFormat) Name() string { return "markdown" }

// CanHandle checks for markdown files and content types
func (f *MarkdownFormat) CanHandle(source, contentType string) bool {
	ext := strings.ToLower(filepath.Ext(source))
	return ext == ".md" || ext == ".markdown" || strings.Contains(contentType, "markdown")
}

// Text strips block-level markdown syntax, keeping the prose verbatim
func (f *MarkdownFormat) Text(data []byte) (string, error) {
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		trimmed = strings.TrimLeft(trimmed, "#")
		trimmed = strings.TrimPrefix(trimmed, "> ")
		trimmed = strings.TrimSpace(trimmed)
		// Headings become sentences of their own
		if strings.HasPrefix(strings.TrimSpace(line), "#") && trimmed != "" && !strings.ContainsAny(trimmed[len(trimmed)-1:], ".!?:") {
			trimmed += "."
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n")), nil
}

// HTMLFormat reduces a page to its visible text
type HTMLFormat struct{}

// Name returns the format name
func (f *HTMLFormat) Name() string { return "html" }

// CanHandle checks for HTML files and content types
func (f *HTMLFormat) CanHandle(source, contentType string) bool {
	ext := strings.ToLower(filepath.Ext(source))
	return ext == ".html" || ext == ".htm" ||
		strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml")
}

// Text extracts visible text, skipping scripts, styles and navigation
func (f *HTMLFormat) Text(data []byte) (string, error) {
	return util.VisibleText(bytes.NewReader(data))
}

// WikipediaFormat keeps only the article body of a Wikipedia page and
// drops citation markers such as "[12]"
type WikipediaFormat struct{}

// Name returns the format name
func (f *WikipediaFormat) Name() string { return "wikipedia" }

// CanHandle checks if this is a Wikipedia URL
func (f *WikipediaFormat) CanHandle(source, contentType string) bool {
	return strings.Contains(source, "wikipedia.org")
}

// Text extracts the paragraphs of the main content area
func (f *WikipediaFormat) Text(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	content := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" &&
			(hasClass(n, "mw-parser-output") || attr(n, "id") == "mw-content-text")
	})
	if content == nil {
		return util.VisibleText(bytes.NewReader(data))
	}

	var paragraphs []string
	for _, p := range findAll(content, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "p"
	}) {
		if text := nodeText(p); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// nodeText concatenates text below n, skipping reference superscripts
func nodeText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "sup" && hasClass(n, "reference") {
				return
			}
			if n.Data == "style" || n.Data == "script" {
				return
			}
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return strings.Join(strings.Fields(buf.String()), " ")
}

func hasClass(n *html.Node, className string) bool {
	for _, class := range strings.Fields(attr(n, "class")) {
		if class == className {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			results = append(results, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return results
}

func findFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	if predicate(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, predicate); found != nil {
			return found
		}
	}
	return nil
}
