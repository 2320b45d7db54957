// Package dom wraps a golang.org/x/net/html tree as the live document a
// veil session works on. Nodes are opaque handles: the core keeps its own
// records keyed by *html.Node and only writes class/style attributes back
// onto the tree so a host can render the result.
//
// Child-list mutations go through Document so they can be reported to
// observers in batches, the way a MutationObserver delivers them. Attribute
// writes are never reported as mutations; they are tracked separately as
// "dirty" nodes for hosts that mirror the tree elsewhere.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Record is one child-list change under Target.
type Record struct {
	Target  *html.Node
	Added   []*html.Node
	Removed []*html.Node
}

// Observer receives every pending record in one call per Flush.
type Observer func(records []Record)

// Document is a mutable HTML tree. It is not safe for concurrent use; the
// session event loop is its only writer.
type Document struct {
	root      *html.Node
	pending   []Record
	observers []Observer

	dirty      map[*html.Node]struct{}
	dirtyOrder []*html.Node
}

// New wraps an already parsed tree.
func New(root *html.Node) *Document {
	return &Document{root: root, dirty: make(map[*html.Node]struct{})}
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return New(root), nil
}

// ParseString is Parse for an in-memory string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseFragment parses markup in the context of parent and returns the
// detached top-level nodes, ready for AppendChild/InsertBefore.
func ParseFragment(markup string, parent *html.Node) ([]*html.Node, error) {
	ctx := parent
	if ctx == nil || ctx.Type != html.ElementNode {
		ctx = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	return nodes, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the <body> element, or the root when there is none.
func (d *Document) Body() *html.Node {
	if b := FindFirst(d.root, atom.Body); b != nil {
		return b
	}
	return d.root
}

// Observe subscribes fn to child-list records. Records produced before the
// subscription are not replayed.
func (d *Document) Observe(fn Observer) {
	d.observers = append(d.observers, fn)
}

// AppendChild attaches child as the last child of parent. A child that is
// already attached elsewhere is moved, producing a removal record first.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.detach(child)
	parent.AppendChild(child)
	d.pending = append(d.pending, Record{Target: parent, Added: []*html.Node{child}})
}

// InsertBefore attaches child before ref. A nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if ref == nil || ref.Parent != parent {
		d.AppendChild(parent, child)
		return
	}
	d.detach(child)
	parent.InsertBefore(child, ref)
	d.pending = append(d.pending, Record{Target: parent, Added: []*html.Node{child}})
}

// RemoveChild detaches child from its parent. Detached nodes are ignored.
func (d *Document) RemoveChild(child *html.Node) {
	d.detach(child)
}

func (d *Document) detach(n *html.Node) {
	p := n.Parent
	if p == nil {
		return
	}
	p.RemoveChild(n)
	d.pending = append(d.pending, Record{Target: p, Removed: []*html.Node{n}})
}

// Pending reports how many records await delivery.
func (d *Document) Pending() int { return len(d.pending) }

// Flush delivers pending records to every observer in one call each and
// returns the number delivered. Records produced by an observer while it
// runs are delivered by the next Flush.
func (d *Document) Flush() int {
	if len(d.pending) == 0 {
		return 0
	}
	recs := d.pending
	d.pending = nil
	for _, fn := range d.observers {
		fn(recs)
	}
	return len(recs)
}

// Render serialises the whole document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// RenderNode serialises a single subtree to a string.
func RenderNode(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// TakeDirty returns nodes whose class or style changed since the last call,
// in first-touched order, and resets the set.
func (d *Document) TakeDirty() []*html.Node {
	out := d.dirtyOrder
	d.dirtyOrder = nil
	d.dirty = make(map[*html.Node]struct{})
	return out
}

func (d *Document) touch(n *html.Node) {
	if _, ok := d.dirty[n]; ok {
		return
	}
	d.dirty[n] = struct{}{}
	d.dirtyOrder = append(d.dirtyOrder, n)
}

// Walk visits n and its descendants depth-first in document order. Returning
// false from fn skips the node's children.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	stack := []*html.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		// Push children in reverse so the first child is popped first.
		for c := cur.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
}

// FindFirst returns the first element with the given atom under n.
func FindFirst(n *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	Walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && c.DataAtom == a {
			found = c
			return false
		}
		return true
	})
	return found
}

// Contains reports whether n is a or one of its descendants.
func Contains(a, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

// CommonAncestor returns the deepest node containing both a and b.
func CommonAncestor(a, b *html.Node) *html.Node {
	seen := make(map[*html.Node]struct{})
	for p := a; p != nil; p = p.Parent {
		seen[p] = struct{}{}
	}
	for p := b; p != nil; p = p.Parent {
		if _, ok := seen[p]; ok {
			return p
		}
	}
	return nil
}

// Attached reports whether n is still reachable from the document root.
func (d *Document) Attached(n *html.Node) bool {
	return Contains(d.root, n)
}
