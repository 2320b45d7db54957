package dom

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blockTags = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Details: true, atom.Dialog: true, atom.Div: true, atom.Dl: true,
	atom.Dt: true, atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true,
	atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true,
	atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Table: true, atom.Tr: true, atom.Td: true,
	atom.Th: true, atom.Ul: true, atom.Body: true, atom.Html: true,
}

var opaqueTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Head: true, atom.Title: true,
}

// IsBlock reports whether n starts a new line when rendered.
func IsBlock(n *html.Node) bool {
	return n.Type == html.ElementNode && (blockTags[n.DataAtom] || n.DataAtom == atom.Br)
}

// IsOpaque reports whether n's text is never rendered.
func IsOpaque(n *html.Node) bool {
	return n.Type == html.ElementNode && opaqueTags[n.DataAtom]
}

// IsBlank reports whether n is a whitespace-only text node or a comment.
func IsBlank(n *html.Node) bool {
	switch n.Type {
	case html.CommentNode:
		return true
	case html.TextNode:
		return strings.TrimFunc(n.Data, unicode.IsSpace) == ""
	}
	return false
}

// InnerText approximates the rendered text of n: script-like subtrees are
// skipped, block boundaries become line breaks, runs of whitespace inside a
// line collapse to one space and blank lines are dropped.
func InnerText(n *html.Node) string {
	var raw strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch {
		case c.Type == html.TextNode:
			// Source line breaks are plain whitespace; only blocks and <br> break lines.
			raw.WriteString(strings.Map(flattenNewline, c.Data))
			return
		case IsOpaque(c):
			return
		case c.Type == html.ElementNode && c.DataAtom == atom.Br:
			raw.WriteByte('\n')
			return
		}
		block := IsBlock(c)
		if block {
			raw.WriteByte('\n')
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
		if block {
			raw.WriteByte('\n')
		}
	}
	walk(n)
	return CollapseText(raw.String())
}

// CollapseText collapses whitespace runs inside each line of s to a single
// space and drops blank lines.
func CollapseText(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func flattenNewline(r rune) rune {
	if r == '\n' || r == '\r' {
		return ' '
	}
	return r
}
