package util

import (
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// VisibleText extracts text nodes from an HTML document, skipping scripts and styles
func VisibleText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head", "nav", "footer":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return strings.TrimSpace(buf.String()), nil
}

// SplitSentences splits text into trimmed sentences on ., ! and ? followed by
// whitespace. Decimal points ("1.2 million") do not end a sentence. Each
// sentence is a verbatim substring of text.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "have": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "this": true, "to": true, "was": true,
	"were": true, "will": true, "with": true, "we": true, "our": true, "what": true,
	"which": true, "who": true, "how": true, "does": true, "do": true, "did": true,
	"been": true, "their": true, "they": true, "there": true, "than": true,
}

// Terms returns the lowercase content words of text, without stopwords.
// Tokens keep digits, so "2024" and "15%" survive as "2024" and "15".
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 && !unicode.IsDigit(rune(f[0])) {
			continue
		}
		if stopwords[f] {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// TermSet returns the distinct terms of text
func TermSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Terms(text) {
		set[t] = true
	}
	return set
}
