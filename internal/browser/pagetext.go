package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// VisibleText flattens an HTML document to the text a visitor would see,
// skipping script, style and head content. Counter parsing and success
// marker checks run against this rather than raw markup, so attribute noise
// never produces false matches.
func VisibleText(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		// Best effort: unparsable markup degrades to the raw string.
		return doc
	}
	var b strings.Builder
	collectText(root, &b)
	return b.String()
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "head", "template":
			return
		}
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// ContainsMarker reports whether any of the markers occurs in the text.
// Matching is case-insensitive because the targets are inconsistent about
// casing in their error banners.
func ContainsMarker(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
