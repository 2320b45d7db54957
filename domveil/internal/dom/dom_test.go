package dom

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := ParseString(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestInnerText_BlocksAndWhitespace(t *testing.T) {
	doc := mustParse(t, `<body><div>
		<p>Hello   <b>big</b>
		world</p><p>second</p><script>var x = 1;</script>line<br>break</div></body>`)
	got := InnerText(doc.Body())
	want := "Hello big world\nsecond\nline\nbreak"
	if got != want {
		t.Errorf("InnerText: got %q, want %q", got, want)
	}
}

func TestFlush_DeliversOneCallPerFlush(t *testing.T) {
	doc := mustParse(t, `<body><div id="root"></div></body>`)
	root := FindFirst(doc.Root(), atom.Div)

	var calls [][]Record
	doc.Observe(func(recs []Record) { calls = append(calls, recs) })

	a := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
	b := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
	doc.AppendChild(root, a)
	doc.InsertBefore(root, b, a)

	if n := doc.Flush(); n != 2 {
		t.Fatalf("Flush: got %d records, want 2", n)
	}
	if len(calls) != 1 {
		t.Fatalf("observer calls: got %d, want 1", len(calls))
	}
	if root.FirstChild != b || b.NextSibling != a {
		t.Error("InsertBefore did not place b before a")
	}
	if n := doc.Flush(); n != 0 {
		t.Errorf("second Flush: got %d, want 0", n)
	}
}

func TestAppendChild_MoveRecordsRemoval(t *testing.T) {
	doc := mustParse(t, `<body><div><span>x</span></div><p></p></body>`)
	span := FindFirst(doc.Root(), atom.Span)
	p := FindFirst(doc.Root(), atom.P)

	var recs []Record
	doc.Observe(func(r []Record) { recs = append(recs, r...) })
	doc.AppendChild(p, span)
	doc.Flush()

	if len(recs) != 2 {
		t.Fatalf("records: got %d, want 2", len(recs))
	}
	if len(recs[0].Removed) != 1 || len(recs[1].Added) != 1 {
		t.Errorf("records: got %+v", recs)
	}
	if span.Parent != p {
		t.Error("span not moved under p")
	}
}

func TestClassAndStyle_Echo(t *testing.T) {
	doc := mustParse(t, `<body><p class="lead" style="color: red">x</p></body>`)
	p := FindFirst(doc.Root(), atom.P)

	doc.AddClass(p, "veil0")
	doc.AddClass(p, "veil0")
	if got := Attr(p, "class"); got != "lead veil0" {
		t.Errorf("class: got %q", got)
	}

	doc.SetStyle(p, "color", "transparent", true)
	doc.SetStyle(p, "text-shadow", "none", false)
	if v, ok := Style(p, "color"); !ok || v != "transparent" {
		t.Errorf("color: got %q %v", v, ok)
	}
	if got := Attr(p, "style"); got != "color: transparent !important; text-shadow: none;" {
		t.Errorf("style: got %q", got)
	}

	doc.RemoveStyle(p, "color")
	doc.RemoveStyle(p, "text-shadow")
	if HasAttr(p, "style") {
		t.Errorf("style should be removed, got %q", Attr(p, "style"))
	}

	doc.RemoveClass(p, "lead")
	doc.RemoveClass(p, "veil0")
	if HasAttr(p, "class") {
		t.Errorf("class should be removed, got %q", Attr(p, "class"))
	}

	dirty := doc.TakeDirty()
	if len(dirty) != 1 || dirty[0] != p {
		t.Errorf("dirty: got %d nodes", len(dirty))
	}
	if len(doc.TakeDirty()) != 0 {
		t.Error("TakeDirty should reset")
	}
}

func TestCommonAncestor(t *testing.T) {
	doc := mustParse(t, `<body><div><p><b>a</b></p><p><i>b</i></p></div></body>`)
	b := FindFirst(doc.Root(), atom.B)
	i := FindFirst(doc.Root(), atom.I)
	div := FindFirst(doc.Root(), atom.Div)
	if got := CommonAncestor(b.FirstChild, i.FirstChild); got != div {
		t.Errorf("CommonAncestor: got %v, want div", got.Data)
	}
	if got := CommonAncestor(b.FirstChild, b.FirstChild); got != b.FirstChild {
		t.Error("CommonAncestor of a node with itself should be the node")
	}
}

func TestParseFragment_Render(t *testing.T) {
	doc := mustParse(t, `<body><ul></ul></body>`)
	ul := FindFirst(doc.Root(), atom.Ul)
	nodes, err := ParseFragment(`<li>one</li><li>two</li>`, ul)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range nodes {
		doc.AppendChild(ul, n)
	}
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<ul><li>one</li><li>two</li></ul>") {
		t.Errorf("render: %s", buf.String())
	}
}
