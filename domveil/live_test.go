package domveil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/veil/domveil/internal/live"
	"github.com/hazyhaar/veil/domveil/protocol"
)

type liveHarness struct {
	*harness
	l *Live
}

// startLive mirrors keyed markup into a running session without a browser.
// Pushes accumulate in l.push.
func startLive(t *testing.T, body string) *liveHarness {
	t.Helper()
	out := &collector{}
	s, err := NewFromString(nil, live.WrapBody(body), WithSinks(out.sink()))
	if err != nil {
		t.Fatal(err)
	}
	l := &Live{s: s, keys: live.NewKeys(s.doc.Root()), push: make(chan livePush, 64)}
	s.onAfterEvent(l.collect)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	l.done = ctx.Done()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		s.Close()
		cancel()
		<-done
	})
	h := &liveHarness{harness: &harness{s: s, out: out, ctx: ctx}, l: l}
	h.drain(t)
	return h
}

func (h *liveHarness) page(t *testing.T, payload string) {
	t.Helper()
	ev, err := live.ParseEvent(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.s.do(h.ctx, func() { h.l.handle(ev) }); err != nil {
		t.Fatal(err)
	}
	h.drain(t)
}

func (h *liveHarness) pushes() []livePush {
	var out []livePush
	for {
		select {
		case p := <-h.l.push:
			out = append(out, p)
		default:
			return out
		}
	}
}

func patchFor(pushes []livePush, key string) (live.Patch, bool) {
	var found live.Patch
	ok := false
	for _, p := range pushes {
		for _, pt := range p.patches {
			if pt.Key == key {
				found, ok = pt, true
			}
		}
	}
	return found, ok
}

func TestLive_InitialScanPatchesPage(t *testing.T) {
	h := startLive(t, `<body data-veil-key="k0"><p data-veil-key="k1">hello</p><img data-veil-key="k2" src="a.png"></body>`)
	pushes := h.pushes()
	p1, ok := patchFor(pushes, "k1")
	if !ok || !strings.Contains(p1.Class, "VeilElement0") {
		t.Errorf("k1 patch = %+v, %v", p1, ok)
	}
	if _, ok := patchFor(pushes, "k2"); !ok {
		t.Error("image not patched")
	}
	if _, ok := patchFor(pushes, "k0"); ok {
		t.Error("body must not be patched")
	}
}

func TestLive_ClickRevealsHidden(t *testing.T) {
	h := startLive(t, `<body data-veil-key="k0"><p data-veil-key="k1">rude <b data-veil-key="k2">words</b></p></body>`)
	if err := h.s.Dispatch(h.ctx, protocol.Hide{ClassName: "VeilElement0"}); err != nil {
		t.Fatal(err)
	}
	h.drain(t)
	if p, ok := patchFor(h.pushes(), "k1"); !ok || !strings.Contains(p.Class, "VeilHidden") || p.Style == "" {
		t.Fatalf("hide patch = %+v, %v", p, ok)
	}
	h.out.take()

	h.page(t, `{"type":"click","key":"k2"}`)
	if got := h.state(t, "VeilElement0"); got != "revealed" {
		t.Fatalf("state = %s, want revealed", got)
	}
	p, ok := patchFor(h.pushes(), "k1")
	if !ok || strings.Contains(p.Class, "VeilHidden") || !strings.Contains(p.Class, "VeilRevealed") {
		t.Errorf("reveal patch = %+v, %v", p, ok)
	}
	msgs := h.out.take()
	if len(msgs) != 1 || msgs[0].Kind() != protocol.KindElementRevealed {
		t.Errorf("messages = %v", msgs)
	}
}

func TestLive_MutationScansAndKeys(t *testing.T) {
	h := startLive(t, `<body data-veil-key="k0"><p data-veil-key="k1">first</p><p data-veil-key="k2">last</p></body>`)
	h.pushes()
	h.out.take()

	h.page(t, `{"type":"mutation","added":[{"parent":"k0","before":"k2","html":"<p data-veil-key=\"k3\">middle</p>"}],"removed":["k1"]}`)

	ps := predicts(h.out.take())
	if len(ps) != 1 || len(ps[0].Content) != 1 {
		t.Fatalf("predicts = %v", ps)
	}
	for _, text := range ps[0].Content {
		if text != "middle" {
			t.Errorf("predicted %q", text)
		}
	}
	if p, ok := patchFor(h.pushes(), "k3"); !ok || !strings.Contains(p.Class, "VeilElement") {
		t.Errorf("k3 patch = %+v, %v", p, ok)
	}
	if h.l.keys.Node("k1") != nil {
		t.Error("removed key still indexed")
	}

	els, err := h.s.Elements(h.ctx)
	if err != nil {
		t.Fatal(err)
	}
	var texts []string
	for _, el := range els {
		texts = append(texts, el.Text)
	}
	if strings.Join(texts, ",") != "middle,last" {
		t.Errorf("elements = %v", texts)
	}
}

func TestLive_SelectionSnapsBackToPage(t *testing.T) {
	h := startLive(t, `<body data-veil-key="k0"><p data-veil-key="k1">café noir brûlé</p></body>`)
	h.pushes()

	h.page(t, `{"type":"selection","anchor":{"k":"k1","t":0,"o":2},"focus":{"k":"k1","t":0,"o":7}}`)
	for _, p := range h.pushes() {
		if p.sel != nil {
			t.Fatal("page selection echoed back")
		}
	}
	msgs := h.out.take()
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", msgs)
	}
	if ch, ok := msgs[0].(protocol.SelectionChanged); !ok || ch.Content != "fé no" {
		t.Errorf("got %#v", msgs[0])
	}

	if err := h.s.Dispatch(h.ctx, protocol.SelectionFlagged{Category: "spam"}); err != nil {
		t.Fatal(err)
	}
	h.drain(t)

	var sel *live.SelectionPatch
	pushes := h.pushes()
	for _, p := range pushes {
		if p.sel != nil {
			sel = p.sel
		}
	}
	want := live.SelectionPatch{
		Anchor: live.TextPoint{Key: "k1", Text: 0, Offset: 0},
		Focus:  live.TextPoint{Key: "k1", Text: 0, Offset: 9},
	}
	if sel == nil || *sel != want {
		t.Errorf("selection patch = %+v, want %+v", sel, want)
	}
	if p, ok := patchFor(pushes, "k1"); !ok || !strings.Contains(p.Class, "VeilHidden") {
		t.Errorf("k1 patch = %+v, %v", p, ok)
	}
	msgs = h.out.take()
	add, ok := msgs[len(msgs)-1].(protocol.AddTextToAPI)
	if !ok || add.Text != "café noir" || add.Category != "spam" {
		t.Errorf("got %#v", msgs[len(msgs)-1])
	}
}

func TestLive_ClearedSelection(t *testing.T) {
	h := startLive(t, `<body data-veil-key="k0"><p data-veil-key="k1">some text</p></body>`)
	h.page(t, `{"type":"selection","anchor":{"k":"missing","t":0,"o":0},"focus":{"k":"k1","t":0,"o":3}}`)
	if err := h.s.Dispatch(h.ctx, protocol.SelectionFlagged{Category: "spam"}); err != nil {
		t.Fatal(err)
	}
	h.drain(t)
	if got := h.state(t, "VeilElement0"); got != "normal" {
		t.Errorf("state = %s, want normal", got)
	}
}
