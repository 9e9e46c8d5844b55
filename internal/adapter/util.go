package adapter

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockElements get a trailing space before text extraction so adjacent
// paragraphs and list items do not run together.
const blockElements = "p,div,br,li,ul,ol,h1,h2,h3,h4,h5,h6,tr,td,section,article"

// extractText converts an HTML or HTML-encoded string to plain text.
// Entities are unescaped first (some boards double-encode their markup),
// scripts and styles are dropped, and whitespace is collapsed.
func extractText(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	unescaped := html.UnescapeString(content)
	if !strings.ContainsRune(unescaped, '<') {
		return strings.Join(strings.Fields(unescaped), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(unescaped))
	if err != nil {
		return strings.Join(strings.Fields(unescaped), " ")
	}
	doc.Find("script,style").Remove()
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// containsFold reports whether any needle occurs in haystack, ignoring case.
func containsFold(haystack string, needles ...string) bool {
	h := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(h, n) {
			return true
		}
	}
	return false
}
