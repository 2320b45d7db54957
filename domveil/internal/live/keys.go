package live

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/veil/domveil/internal/dom"
)

// KeyAttr is stamped on every page element by the page script.
const KeyAttr = "data-veil-key"

// Keys maps page keys to the mirrored nodes.
type Keys struct {
	byKey map[string]*html.Node
}

// NewKeys indexes every keyed element under root.
func NewKeys(root *html.Node) *Keys {
	k := &Keys{byKey: make(map[string]*html.Node)}
	k.Add(root)
	return k
}

// Add indexes the keyed elements of a subtree.
func (k *Keys) Add(root *html.Node) {
	dom.Walk(root, func(n *html.Node) bool {
		if key := dom.Attr(n, KeyAttr); key != "" {
			k.byKey[key] = n
		}
		return true
	})
}

// Remove drops the keyed elements of a subtree.
func (k *Keys) Remove(root *html.Node) {
	dom.Walk(root, func(n *html.Node) bool {
		if key := dom.Attr(n, KeyAttr); key != "" && k.byKey[key] == n {
			delete(k.byKey, key)
		}
		return true
	})
}

// Node returns the node with the given key, or nil.
func (k *Keys) Node(key string) *html.Node { return k.byKey[key] }

// Len returns the number of indexed keys.
func (k *Keys) Len() int { return len(k.byKey) }

// Patches builds one patch per keyed node, skipping unkeyed ones.
func Patches(nodes []*html.Node) []Patch {
	out := make([]Patch, 0, len(nodes))
	for _, n := range nodes {
		key := dom.Attr(n, KeyAttr)
		if key == "" {
			continue
		}
		out = append(out, Patch{Key: key, Class: dom.Attr(n, "class"), Style: dom.Attr(n, "style")})
	}
	return out
}

// TextChild returns the i-th text child of n, or nil.
func TextChild(n *html.Node, i int) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if i == 0 {
			return c
		}
		i--
	}
	return nil
}

// TextIndex returns the index of text node t among its parent's text
// children.
func TextIndex(t *html.Node) int {
	i := 0
	for c := t.PrevSibling; c != nil; c = c.PrevSibling {
		if c.Type == html.TextNode {
			i++
		}
	}
	return i
}
