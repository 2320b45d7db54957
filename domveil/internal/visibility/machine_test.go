package visibility

import (
	"testing"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/veil/domveil/internal/dom"
	"github.com/hazyhaar/veil/domveil/internal/element"
	"github.com/hazyhaar/veil/domveil/internal/schedule"
	"github.com/hazyhaar/veil/domveil/protocol"
)

type fixture struct {
	doc   *dom.Document
	reg   *element.Registry
	m     *Machine
	clock *schedule.Fake
	out   []protocol.Outbound
}

func newFixture(t *testing.T, markup string) *fixture {
	t.Helper()
	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{doc: doc, reg: element.NewRegistry(doc), clock: &schedule.Fake{}}
	dom.Walk(doc.Body(), func(n *html.Node) bool {
		if n != doc.Body() {
			f.reg.Identify(n)
		}
		return true
	})
	f.m = New(f.reg, protocol.EmitterFunc(func(o protocol.Outbound) { f.out = append(f.out, o) }), f.clock)
	return f
}

func (f *fixture) byID(t *testing.T, id string) *element.Element {
	t.Helper()
	el := f.reg.Lookup(id)
	if el == nil {
		t.Fatalf("no element %s", id)
	}
	return el
}

func (f *fixture) kinds() []string {
	var out []string
	for _, o := range f.out {
		out = append(out, o.Kind())
	}
	return out
}

func TestHideCommand(t *testing.T) {
	f := newFixture(t, `<body><p style="color: red">secret</p></body>`)
	el := f.byID(t, "VeilElement0")

	if !f.m.HideCommand("VeilElement0") {
		t.Fatal("first hide should apply")
	}
	if el.State != element.Hidden || !el.Bound {
		t.Fatalf("state: got %v bound=%v", el.State, el.Bound)
	}
	if v, _ := dom.Style(el.Node, "color"); v != "transparent" {
		t.Errorf("color: got %q", v)
	}
	if v, _ := dom.Style(el.Node, "text-shadow"); v != hiddenShadow {
		t.Errorf("text-shadow: got %q", v)
	}
	style := dom.Attr(el.Node, "style")

	if f.m.HideCommand("VeilElement0") {
		t.Error("second hide should be a no-op")
	}
	if got := dom.Attr(el.Node, "style"); got != style {
		t.Errorf("idempotence: style changed from %q to %q", style, got)
	}
	if f.m.HideCommand("VeilElement99") {
		t.Error("unknown id should be a no-op")
	}
}

func TestHideCommand_IgnoresRevealed(t *testing.T) {
	f := newFixture(t, `<body><p>x</p></body>`)
	el := f.byID(t, "VeilElement0")
	f.m.Hide(el)
	f.m.Reveal(el)
	if f.m.HideCommand(el.ID) {
		t.Error("hide command must not re-hide a revealed element")
	}
	if el.State != element.Revealed {
		t.Errorf("state: got %v", el.State)
	}
}

func TestReveal_RestoresStyle(t *testing.T) {
	f := newFixture(t, `<body><p style="color: red; text-shadow: 1px 1px blue">x</p></body>`)
	el := f.byID(t, "VeilElement0")
	f.m.Hide(el)
	f.m.Reveal(el)

	if v, _ := dom.Style(el.Node, "color"); v != "red" {
		t.Errorf("color: got %q, want red", v)
	}
	if v, _ := dom.Style(el.Node, "text-shadow"); v != "1px 1px blue" {
		t.Errorf("text-shadow: got %q", v)
	}
	if _, ok := dom.Style(el.Node, "user-select"); ok {
		t.Error("user-select should be removed")
	}
	if !dom.HasClass(el.Node, "VeilRevealed") || dom.HasClass(el.Node, "VeilHidden") {
		t.Errorf("classes: %q", dom.Attr(el.Node, "class"))
	}
	if f.m.LastRevealed() != el {
		t.Error("last revealed not recorded")
	}
}

func TestReveal_PropagatesUpward(t *testing.T) {
	f := newFixture(t, `<body><div><div><p><b>deep</b></p></div></div></body>`)
	// outer div is a container; inner div, p and b are identified.
	inner, p, b := f.byID(t, "VeilElement0"), f.byID(t, "VeilElement1"), f.byID(t, "VeilElement2")
	for _, el := range []*element.Element{inner, p, b} {
		f.m.Hide(el)
	}

	f.m.Reveal(b)
	for _, el := range []*element.Element{inner, p, b} {
		if el.State != element.Revealed {
			t.Errorf("%s: got %v, want revealed", el.ID, el.State)
		}
	}
	if f.m.LastRevealed() != inner {
		t.Errorf("last revealed: got %v, want topmost", f.m.LastRevealed().ID)
	}
}

func TestReveal_StopsAtNonHiddenParent(t *testing.T) {
	f := newFixture(t, `<body><p><b>x</b></p></body>`)
	p, b := f.byID(t, "VeilElement0"), f.byID(t, "VeilElement1")
	f.m.Hide(b)
	f.m.Reveal(b)
	if p.State != element.Normal {
		t.Errorf("parent: got %v, want normal", p.State)
	}
}

func TestHide_RehidesRevealedDescendants(t *testing.T) {
	f := newFixture(t, `<body><li><p><b>x</b></p><strong>y</strong></li></body>`)
	li, p, b, strong := f.byID(t, "VeilElement0"), f.byID(t, "VeilElement1"), f.byID(t, "VeilElement2"), f.byID(t, "VeilElement3")
	f.m.Hide(b)
	f.m.Reveal(b)
	f.m.Hide(strong)
	f.m.Reveal(strong)

	f.m.Hide(li)
	for _, el := range []*element.Element{li, b, strong} {
		if el.State != element.Hidden {
			t.Errorf("%s: got %v, want hidden", el.ID, el.State)
		}
	}
	if p.State != element.Normal {
		t.Errorf("normal descendant changed: got %v", p.State)
	}
}

func TestClick_RevealsHiddenAndPreventsDefault(t *testing.T) {
	f := newFixture(t, `<body><a href="/x">link</a><p>plain</p></body>`)
	a, p := f.byID(t, "VeilElement0"), f.byID(t, "VeilElement1")
	f.m.Hide(a)

	if !f.m.Click(a.Node.FirstChild) {
		t.Error("click on hidden element should prevent default")
	}
	if a.State != element.Revealed {
		t.Errorf("state: got %v", a.State)
	}
	if kinds := f.kinds(); len(kinds) != 1 || kinds[0] != protocol.KindElementRevealed {
		t.Errorf("emitted: %v", kinds)
	}

	if f.m.Click(a.Node) {
		t.Error("click on revealed element should not prevent default")
	}
	if f.m.Click(p.Node) {
		t.Error("click on unbound element should not prevent default")
	}
	if len(f.out) != 1 {
		t.Errorf("emitted after extra clicks: %v", f.kinds())
	}
}

func TestClick_NestedHiddenAnnouncesOnce(t *testing.T) {
	f := newFixture(t, `<body><p><b>x</b></p></body>`)
	p, b := f.byID(t, "VeilElement0"), f.byID(t, "VeilElement1")
	f.m.Hide(p)
	f.m.Hide(b)

	f.m.Click(b.Node)
	if p.State != element.Revealed || b.State != element.Revealed {
		t.Errorf("states: p=%v b=%v", p.State, b.State)
	}
	if len(f.out) != 1 {
		t.Errorf("elementRevealed count: got %d, want 1", len(f.out))
	}
}

func TestLongPress(t *testing.T) {
	f := newFixture(t, `<body><p>x</p></body>`)
	el := f.byID(t, "VeilElement0")
	f.m.Hide(el)

	f.m.TouchStart(el.Node)
	f.clock.Advance(499 * time.Millisecond)
	if el.State != element.Hidden {
		t.Fatal("revealed before the threshold")
	}
	f.clock.Advance(time.Millisecond)
	if el.State != element.Revealed {
		t.Fatalf("state after 500ms: got %v", el.State)
	}
	if len(f.out) != 0 {
		t.Errorf("long press must not announce: %v", f.kinds())
	}
}

func TestLongPress_CancelledByRelease(t *testing.T) {
	for _, release := range []string{"end", "leave", "cancel"} {
		t.Run(release, func(t *testing.T) {
			f := newFixture(t, `<body><p>x</p></body>`)
			el := f.byID(t, "VeilElement0")
			f.m.Hide(el)

			f.m.TouchStart(el.Node)
			f.clock.Advance(100 * time.Millisecond)
			switch release {
			case "end":
				f.m.TouchEnd(el.Node)
			case "leave":
				f.m.TouchLeave(el.Node)
			case "cancel":
				f.m.TouchCancel(el.Node)
			}
			f.clock.Advance(time.Second)
			if el.State != element.Hidden {
				t.Errorf("state: got %v, want hidden", el.State)
			}
			if f.m.PendingPresses() != 0 || f.clock.Pending() != 0 {
				t.Error("timer left pending")
			}
		})
	}
}

func TestLongPress_RestartOnRepeatedTouch(t *testing.T) {
	f := newFixture(t, `<body><p>x</p></body>`)
	el := f.byID(t, "VeilElement0")
	f.m.Hide(el)

	f.m.TouchStart(el.Node)
	f.clock.Advance(300 * time.Millisecond)
	f.m.TouchStart(el.Node)
	f.clock.Advance(300 * time.Millisecond)
	if el.State != element.Hidden {
		t.Fatal("second touch should restart the press")
	}
	if f.clock.Pending() != 1 {
		t.Errorf("pending timers: got %d, want 1", f.clock.Pending())
	}
	f.clock.Advance(200 * time.Millisecond)
	if el.State != element.Revealed {
		t.Errorf("state: got %v", el.State)
	}
}

func TestUnflagIgnored(t *testing.T) {
	f := newFixture(t, `<body><li>caption <img alt="pic"></li></body>`)
	li, img := f.byID(t, "VeilElement0"), f.byID(t, "VeilElement1")

	if f.m.UnflagIgnored() {
		t.Fatal("no reveal yet: must be a no-op")
	}

	f.m.Hide(li)
	f.m.Reveal(li)
	if !f.m.UnflagIgnored() {
		t.Fatal("UnflagIgnored should apply")
	}
	if li.State != element.Hidden || img.State != element.Hidden {
		t.Errorf("states: li=%v img=%v", li.State, img.State)
	}
	if f.m.LastRevealed() != nil {
		t.Error("last revealed should be cleared")
	}
}

func TestSelectionUnflagged(t *testing.T) {
	f := newFixture(t, `<body><p>was hidden</p></body>`)
	el := f.byID(t, "VeilElement0")

	if f.m.SelectionUnflagged() {
		t.Fatal("no reveal yet: must be a no-op")
	}
	if len(f.out) != 0 {
		t.Fatal("no-op must not emit")
	}

	f.m.Hide(el)
	f.m.Reveal(el)
	f.m.SelectionUnflagged()

	if el.State != element.Hidden {
		t.Errorf("state: got %v, want hidden", el.State)
	}
	if dom.HasClass(el.Node, "VeilRevealed") {
		t.Error("revealed marker still present")
	}
	if len(f.out) != 1 {
		t.Fatalf("emitted: %v", f.kinds())
	}
	got := f.out[0].(protocol.AddTextToAPI)
	if got.Text != "was hidden" || got.Category != DefaultCategory {
		t.Errorf("got %+v", got)
	}
}

func TestForget_ReleasesTimersAndLast(t *testing.T) {
	f := newFixture(t, `<body><p>x</p></body>`)
	el := f.byID(t, "VeilElement0")
	f.m.Hide(el)
	f.m.Reveal(el)
	f.m.Hide(el)
	f.m.TouchStart(el.Node)

	f.reg.Forget(dom.FindFirst(f.doc.Root(), atom.P))
	if f.m.PendingPresses() != 0 || f.clock.Pending() != 0 {
		t.Error("press timer survived removal")
	}
	if f.m.LastRevealed() != nil {
		t.Error("last revealed survived removal")
	}
}

func TestStateTotality(t *testing.T) {
	f := newFixture(t, `<body><p><b>a</b><img alt="b"></p><li>c</li></body>`)
	ops := []func(){
		func() { f.m.HideCommand("VeilElement0") },
		func() { f.m.Click(f.byID(t, "VeilElement1").Node) },
		func() { f.m.HideCommand("VeilElement3") },
		func() { f.m.UnflagIgnored() },
		func() { f.m.Click(f.byID(t, "VeilElement2").Node) },
		func() { f.m.SelectionUnflagged() },
		func() { f.m.TouchStart(f.byID(t, "VeilElement3").Node); f.clock.Advance(time.Second) },
	}
	for i, op := range ops {
		op()
		for _, id := range []string{"VeilElement0", "VeilElement1", "VeilElement2", "VeilElement3"} {
			el := f.byID(t, id)
			hidden := dom.HasClass(el.Node, "VeilHidden")
			revealed := dom.HasClass(el.Node, "VeilRevealed")
			if hidden && revealed {
				t.Fatalf("op %d: %s carries both markers", i, id)
			}
			want := element.Normal
			if hidden {
				want = element.Hidden
			} else if revealed {
				want = element.Revealed
			}
			if el.State != want {
				t.Fatalf("op %d: %s state %v does not match markers", i, id, el.State)
			}
		}
	}
}
