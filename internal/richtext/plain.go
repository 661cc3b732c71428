// Package richtext turns user supplied descriptions into plain text.
package richtext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockTags end a line when rendered as text.
const blockTags = "p, div, li, br, h1, h2, h3, h4, h5, h6, tr, blockquote"

// PlainText strips markup from s and collapses runs of spaces. Line breaks
// between block elements are kept. Text without any markup is only trimmed.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style").Remove()
	doc.Find(blockTags).Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// PlainTextPtr applies PlainText to an optional field. An empty result is nil.
func PlainTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := PlainText(*s)
	if out == "" {
		return nil
	}
	return &out
}
