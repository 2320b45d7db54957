// Package element assigns tracking identities to document nodes and keeps the
// per-node record (id, classifiable text, visibility state) in a side table.
// The node itself only echoes the record through marker classes and an
// explicit text-shadow guard.
package element

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/veil/domveil/internal/dom"
)

// State is the visibility state of an identified element.
type State int

const (
	Normal State = iota
	Hidden
	Revealed
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Revealed:
		return "revealed"
	default:
		return "normal"
	}
}

// Element is the side-table record of an identified node.
type Element struct {
	ID   string
	Node *html.Node
	// Text is the alt text for images and the rendered text otherwise,
	// captured once at identification.
	Text  string
	State State
	// Guard is the text-shadow value forced at identification.
	Guard string
	// Bound is set once click and long-press handling is attached.
	Bound bool
}

// IsImage reports whether the element is an <img>.
func (e *Element) IsImage() bool {
	return e.Node.DataAtom == atom.Img
}

// CurrentText recomputes the classifiable text from the live node.
func (e *Element) CurrentText() string {
	return classifiableText(e.Node)
}

func classifiableText(n *html.Node) string {
	if n.DataAtom == atom.Img {
		return dom.Attr(n, "alt")
	}
	return dom.InnerText(n)
}

var qualifying = map[atom.Atom]bool{
	atom.P: true, atom.A: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.Span: true, atom.Div: true, atom.Font: true, atom.B: true,
	atom.Img: true, atom.Strong: true,
}

// Qualifies reports whether n is eligible for identification: a qualifying
// tag that is not a span/div wrapping another span/div.
func Qualifies(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || !qualifying[n.DataAtom] {
		return false
	}
	if n.DataAtom == atom.Span || n.DataAtom == atom.Div {
		return !isContainer(n)
	}
	return true
}

// isContainer reports whether the first significant child of n is a span or div.
func isContainer(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if dom.IsBlank(c) {
			continue
		}
		return c.Type == html.ElementNode && (c.DataAtom == atom.Span || c.DataAtom == atom.Div)
	}
	return false
}
