package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Attr returns the value of an attribute on n.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether n carries the attribute.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces an attribute and marks n dirty.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	d.touch(n)
	setAttr(n, key, val)
}

// RemoveAttr deletes an attribute and marks n dirty.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	d.touch(n)
	removeAttr(n, key)
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// Classes returns the class list of n.
func Classes(n *html.Node) []string {
	return strings.Fields(Attr(n, "class"))
}

// HasClass reports whether n has class c.
func HasClass(n *html.Node, c string) bool {
	for _, k := range Classes(n) {
		if k == c {
			return true
		}
	}
	return false
}

// AddClass appends c to the class list unless already present.
func (d *Document) AddClass(n *html.Node, c string) {
	if HasClass(n, c) {
		return
	}
	classes := append(Classes(n), c)
	d.SetAttr(n, "class", strings.Join(classes, " "))
}

// RemoveClass drops c from the class list.
func (d *Document) RemoveClass(n *html.Node, c string) {
	if !HasClass(n, c) {
		return
	}
	var keep []string
	for _, k := range Classes(n) {
		if k != c {
			keep = append(keep, k)
		}
	}
	if len(keep) == 0 {
		d.RemoveAttr(n, "class")
		return
	}
	d.SetAttr(n, "class", strings.Join(keep, " "))
}
