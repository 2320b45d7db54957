// Package selection normalises user text selections to whole words, resolves
// the identified elements a selection spans and drives the selection-based
// hide and flag flows.
//
// Positions are measured in a flattened copy of the document text: text
// nodes in document order, with a single line break wherever a block starts
// or ends. Word boundaries follow Unicode word segmentation (UAX #29).
package selection

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/net/html"

	"github.com/hazyhaar/veil/domveil/internal/dom"
)

// Point is a position inside a text node, in bytes. An element node may
// also be used, in which case Offset counts its children.
type Point struct {
	Node   *html.Node
	Offset int
}

// Selection is a possibly backwards range between Anchor and Focus.
type Selection struct {
	Anchor Point
	Focus  Point
}

// IsZero reports whether the selection is absent.
func (s Selection) IsZero() bool {
	return s.Anchor.Node == nil || s.Focus.Node == nil
}

// Collapsed returns a selection with both ends at p.
func Collapsed(p Point) Selection {
	return Selection{Anchor: p, Focus: p}
}

type textSpan struct {
	node       *html.Node
	start, end int
}

type extent struct {
	start, end int
}

// Index maps the text of a subtree to flat offsets and word ranges. It is a
// snapshot: rebuild it after the tree changes.
type Index struct {
	text    string
	spans   []textSpan
	byNode  map[*html.Node]int
	extents map[*html.Node]extent
	words   []extent
}

// NewIndex flattens the text under root.
func NewIndex(root *html.Node) *Index {
	ix := &Index{
		byNode:  make(map[*html.Node]int),
		extents: make(map[*html.Node]extent),
	}
	var b strings.Builder
	lineBreak := func() {
		if b.Len() > 0 && b.String()[b.Len()-1] != '\n' {
			b.WriteByte('\n')
		}
	}

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			ix.byNode[n] = len(ix.spans)
			start := b.Len()
			// Same byte length, so offsets into Data stay valid.
			b.WriteString(strings.Map(plainSpace, n.Data))
			ix.spans = append(ix.spans, textSpan{node: n, start: start, end: b.Len()})
			return
		}
		if dom.IsOpaque(n) {
			ix.extents[n] = extent{b.Len(), b.Len()}
			return
		}
		block := dom.IsBlock(n)
		if block {
			lineBreak()
		}
		start := b.Len()
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if n.Type == html.ElementNode {
			ix.extents[n] = extent{start, b.Len()}
		}
		if block {
			lineBreak()
		}
	}
	if root != nil {
		visit(root)
	}
	ix.text = b.String()

	it := words.FromString(ix.text)
	for it.Next() {
		if isWord(it.Value()) {
			ix.words = append(ix.words, extent{it.Start(), it.End()})
		}
	}
	return ix
}

func plainSpace(r rune) rune {
	if r == '\n' || r == '\r' {
		return ' '
	}
	return r
}

func isWord(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Len returns the length of the flattened text.
func (ix *Index) Len() int { return len(ix.text) }

// Offset converts p to a flat offset.
func (ix *Index) Offset(p Point) (int, bool) {
	if p.Node == nil {
		return 0, false
	}
	if i, ok := ix.byNode[p.Node]; ok {
		s := ix.spans[i]
		return s.start + clamp(p.Offset, 0, s.end-s.start), true
	}
	ext, ok := ix.extents[p.Node]
	if !ok {
		return 0, false
	}
	k := 0
	for c := p.Node.FirstChild; c != nil; c = c.NextSibling {
		if k == p.Offset {
			return ix.nodeStart(c, ext.end), true
		}
		k++
	}
	return ext.end, true
}

func (ix *Index) nodeStart(n *html.Node, fallback int) int {
	if i, ok := ix.byNode[n]; ok {
		return ix.spans[i].start
	}
	if ext, ok := ix.extents[n]; ok {
		return ext.start
	}
	return fallback
}

// Extent returns the flat range covered by the text of element n.
func (ix *Index) Extent(n *html.Node) (start, end int, ok bool) {
	ext, ok := ix.extents[n]
	return ext.start, ext.end, ok
}

// ElementText returns the flattened text covered by element n.
func (ix *Index) ElementText(n *html.Node) string {
	ext, ok := ix.extents[n]
	if !ok {
		return ""
	}
	return ix.text[ext.start:ext.end]
}

// PointAfter maps a flat offset to a point, preferring the text node that
// follows it. Use it for the start of a range.
func (ix *Index) PointAfter(off int) Point {
	i := sort.Search(len(ix.spans), func(i int) bool { return ix.spans[i].end > off })
	if i == len(ix.spans) {
		return ix.PointBefore(off)
	}
	s := ix.spans[i]
	if off < s.start {
		return Point{Node: s.node, Offset: 0}
	}
	return Point{Node: s.node, Offset: off - s.start}
}

// PointBefore maps a flat offset to a point, preferring the text node that
// precedes it. Use it for the end of a range.
func (ix *Index) PointBefore(off int) Point {
	if len(ix.spans) == 0 {
		return Point{}
	}
	i := sort.Search(len(ix.spans), func(i int) bool { return ix.spans[i].end >= off })
	if i == len(ix.spans) {
		last := ix.spans[len(ix.spans)-1]
		return Point{Node: last.node, Offset: last.end - last.start}
	}
	s := ix.spans[i]
	if off < s.start {
		if i > 0 {
			prev := ix.spans[i-1]
			return Point{Node: prev.node, Offset: prev.end - prev.start}
		}
		return Point{Node: s.node, Offset: 0}
	}
	return Point{Node: s.node, Offset: off - s.start}
}

// Range returns the ordered flat bounds of sel.
func (ix *Index) Range(sel Selection) (lo, hi int, ok bool) {
	a, okA := ix.Offset(sel.Anchor)
	f, okF := ix.Offset(sel.Focus)
	if !okA || !okF {
		return 0, 0, false
	}
	if f < a {
		a, f = f, a
	}
	return a, f, true
}

// String returns the selected text with whitespace collapsed, the way a
// rendered selection reads.
func (ix *Index) String(sel Selection) string {
	lo, hi, ok := ix.Range(sel)
	if !ok {
		return ""
	}
	return dom.CollapseText(ix.text[lo:hi])
}

// Select builds a selection from offsets into the flattened text of two
// elements. Offsets are clamped to each element's text.
func (ix *Index) Select(anchor *html.Node, anchorOff int, focus *html.Node, focusOff int) (Selection, bool) {
	as, ae, ok := ix.Extent(anchor)
	if !ok {
		return Selection{}, false
	}
	fs, fe, ok := ix.Extent(focus)
	if !ok {
		return Selection{}, false
	}
	a := as + clamp(anchorOff, 0, ae-as)
	f := fs + clamp(focusOff, 0, fe-fs)
	switch {
	case a < f:
		return Selection{Anchor: ix.PointAfter(a), Focus: ix.PointBefore(f)}, true
	case a > f:
		return Selection{Anchor: ix.PointBefore(a), Focus: ix.PointAfter(f)}, true
	default:
		return Collapsed(ix.PointAfter(a)), true
	}
}

func (ix *Index) charForward(off int) int {
	if off >= len(ix.text) {
		return len(ix.text)
	}
	_, size := utf8.DecodeRuneInString(ix.text[off:])
	return off + size
}

func (ix *Index) charBackward(off int) int {
	if off <= 0 {
		return 0
	}
	_, size := utf8.DecodeLastRuneInString(ix.text[:off])
	return off - size
}

// wordBackward returns the start of the last word starting before off.
func (ix *Index) wordBackward(off int) int {
	i := sort.Search(len(ix.words), func(i int) bool { return ix.words[i].start >= off })
	if i == 0 {
		return 0
	}
	return ix.words[i-1].start
}

// wordForward returns the end of the first word ending after off.
func (ix *Index) wordForward(off int) int {
	i := sort.Search(len(ix.words), func(i int) bool { return ix.words[i].end > off })
	if i == len(ix.words) {
		return len(ix.text)
	}
	return ix.words[i].end
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// UTF16ToByte converts a UTF-16 code unit offset into s, as reported by a
// browser, to a byte offset.
func UTF16ToByte(s string, units int) int {
	n := 0
	for i, r := range s {
		if n >= units {
			return i
		}
		n += utf16.RuneLen(r)
	}
	return len(s)
}

// ByteToUTF16 converts a byte offset into s to UTF-16 code units.
func ByteToUTF16(s string, off int) int {
	n := 0
	for i, r := range s {
		if i >= off {
			break
		}
		n += utf16.RuneLen(r)
	}
	return n
}
