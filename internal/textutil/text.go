package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// PlainText strips markup from s when it looks like HTML and collapses
// whitespace. Chunks extracted from HTML uploads keep their tags, so
// source snippets pass through here before display.
func PlainText(s string) string {
	if !looksLikeHTML(s) {
		return Clean(s)
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return Clean(s)
	}
	return Clean(nodeText(doc))
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}

// nodeText extracts text, excluding elements that never hold prose
func nodeText(n *html.Node) string {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "nav", "footer", "header", "aside":
			return ""
		}
	}

	var text strings.Builder
	if n.Type == html.TextNode {
		text.WriteString(n.Data)
		text.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(nodeText(c))
	}
	return text.String()
}

// Clean collapses runs of whitespace into single spaces.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// TruncateWords cuts text to at most maxWords words.
func TruncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

// Truncate cuts s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}

// Snippet renders a source chunk for a one-line preview.
func Snippet(content string, maxWords int) string {
	return TruncateWords(PlainText(content), maxWords)
}
