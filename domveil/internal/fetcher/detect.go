package fetcher

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/veil/domveil/internal/dom"
)

// Mount points left empty by script-rendered single page apps.
var spaMounts = map[string]bool{"root": true, "app": true, "__next": true, "__nuxt": true}

// minText is the visible text below which a page is treated as a shell.
const minText = 200

// IsSufficient reports whether the parsed page carries enough rendered text
// to be masked without running its scripts.
func IsSufficient(root *html.Node) bool {
	body := dom.FindFirst(root, atom.Body)
	if body == nil {
		return false
	}
	shell := false
	dom.Walk(body, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if n.DataAtom == atom.Div && spaMounts[dom.Attr(n, "id")] && strings.TrimSpace(dom.InnerText(n)) == "" {
			shell = true
			return false
		}
		if n.DataAtom == atom.Noscript {
			if strings.Contains(strings.ToLower(noscriptText(n)), "javascript") {
				shell = true
			}
			return false
		}
		return true
	})
	if shell {
		return false
	}
	return len([]rune(strings.Join(strings.Fields(dom.InnerText(body)), ""))) >= minText
}

// noscriptText returns the raw content of <noscript>, which the parser keeps
// as a single text node when scripting is enabled.
func noscriptText(n *html.Node) string {
	var b strings.Builder
	dom.Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}
