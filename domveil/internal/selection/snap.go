package selection

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/hazyhaar/veil/domveil/internal/dom"
	"github.com/hazyhaar/veil/domveil/internal/element"
)

// Snap extends both ends of sel outward to whole-word boundaries without
// crossing into neighbouring words. The direction of sel is preserved.
//
// Whitespace at either edge is dropped first, so "beta " and " beta" both
// snap to "beta". Then the start edge steps one character inward and one word
// outward, and the end edge steps one character back and one word on. An edge
// at the start or end of a word stays there. A collapsed, blank or
// unresolvable selection is returned unchanged with ok false.
func Snap(ix *Index, sel Selection) (snapped Selection, ok bool) {
	a, okA := ix.Offset(sel.Anchor)
	f, okF := ix.Offset(sel.Focus)
	if !okA || !okF || a == f {
		return sel, false
	}
	if f < a {
		f, a = ix.trimSpace(f, a)
	} else {
		a, f = ix.trimSpace(a, f)
	}
	if a == f {
		return sel, false
	}

	if f < a {
		anchor := ix.wordForward(ix.charBackward(a))
		focus := ix.wordBackward(ix.charForward(f))
		return Selection{Anchor: ix.PointBefore(anchor), Focus: ix.PointAfter(focus)}, true
	}
	anchor := ix.wordBackward(ix.charForward(a))
	focus := ix.wordForward(ix.charBackward(f))
	return Selection{Anchor: ix.PointAfter(anchor), Focus: ix.PointBefore(focus)}, true
}

// trimSpace narrows [lo, hi) past leading and trailing white space. A blank
// range collapses to lo == hi.
func (ix *Index) trimSpace(lo, hi int) (int, int) {
	for lo < hi {
		r, size := utf8.DecodeRuneInString(ix.text[lo:hi])
		if !unicode.IsSpace(r) {
			break
		}
		lo += size
	}
	for hi > lo {
		r, size := utf8.DecodeLastRuneInString(ix.text[lo:hi])
		if !unicode.IsSpace(r) {
			break
		}
		hi -= size
	}
	return lo, hi
}

// Resolve returns the identified elements sel spans. When both ends share a
// text node the nearest identified ancestor of the anchor is used. Otherwise
// every identified element below the common ancestor whose text intersects
// the range is returned in document order; if none does, the nearest
// identified ancestor-or-self of the common ancestor stands in.
func Resolve(ix *Index, reg *element.Registry, sel Selection) []*element.Element {
	lo, hi, ok := ix.Range(sel)
	if !ok {
		return nil
	}
	anc := dom.CommonAncestor(sel.Anchor.Node, sel.Focus.Node)
	if anc == nil {
		return nil
	}
	if anc.Type == html.TextNode {
		if el := reg.Nearest(anc.Parent); el != nil {
			return []*element.Element{el}
		}
		return nil
	}

	var out []*element.Element
	for _, el := range reg.Within(anc) {
		s, e, ok := ix.Extent(el.Node)
		if ok && intersects(s, e, lo, hi) {
			out = append(out, el)
		}
	}
	if len(out) == 0 {
		if el := reg.Nearest(anc); el != nil {
			out = append(out, el)
		}
	}
	return out
}

// intersects reports whether element text [s, e) overlaps the selection
// [lo, hi). A textless element counts when its position lies inside.
func intersects(s, e, lo, hi int) bool {
	if s == e {
		return lo <= s && s < hi
	}
	return s < hi && lo < e
}
