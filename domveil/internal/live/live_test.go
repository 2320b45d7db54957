package live

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/veil/domveil/internal/dom"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"click", `{"type":"click","key":"k3"}`, false},
		{"touch", `{"type":"touch","key":"k1","phase":"start"}`, false},
		{"selection cleared", `{"type":"selection"}`, false},
		{"selection", `{"type":"selection","anchor":{"k":"k1","t":0,"o":2},"focus":{"k":"k2","t":1,"o":0}}`, false},
		{"mutation", `{"type":"mutation","added":[{"parent":"k0","html":"<p>x</p>"}],"removed":["k4"]}`, false},
		{"click without key", `{"type":"click"}`, true},
		{"unknown", `{"type":"scroll"}`, true},
		{"malformed", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	ev, _ := ParseEvent(`{"type":"selection","anchor":{"k":"k1","t":0,"o":2},"focus":{"k":"k2","t":1,"o":5}}`)
	if ev.Anchor == nil || ev.Focus == nil || ev.Focus.Key != "k2" || ev.Focus.Text != 1 || ev.Focus.Offset != 5 {
		t.Errorf("selection points: %+v %+v", ev.Anchor, ev.Focus)
	}
}

func parseDoc(t *testing.T, body string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(WrapBody(body))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestKeys(t *testing.T) {
	doc := parseDoc(t, `<body data-veil-key="k0"><p data-veil-key="k1">a<em data-veil-key="k2">b</em></p><p>plain</p></body>`)
	k := NewKeys(doc.Root())
	if k.Len() != 3 {
		t.Fatalf("Len = %d, want 3", k.Len())
	}
	p := k.Node("k1")
	if p == nil || p.Data != "p" {
		t.Fatalf("Node(k1) = %v", p)
	}
	k.Remove(p)
	if k.Node("k1") != nil || k.Node("k2") != nil || k.Node("k0") == nil {
		t.Error("Remove must drop the subtree only")
	}
	k.Add(p)
	if k.Node("k2") == nil {
		t.Error("Add did not re-index the subtree")
	}
}

func TestPatches(t *testing.T) {
	doc := parseDoc(t, `<body><p data-veil-key="k1" class="VeilElement0 VeilHidden" style="color: red">x</p><p class="c">y</p></body>`)
	var nodes []*html.Node
	dom.Walk(doc.Body(), func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "p" {
			nodes = append(nodes, n)
		}
		return true
	})
	got := Patches(nodes)
	if len(got) != 1 {
		t.Fatalf("got %d patches, want 1", len(got))
	}
	want := Patch{Key: "k1", Class: "VeilElement0 VeilHidden", Style: "color: red"}
	if got[0] != want {
		t.Errorf("got %+v, want %+v", got[0], want)
	}
}

func TestTextChild(t *testing.T) {
	doc := parseDoc(t, `<body><p data-veil-key="k1">one<b>bold</b>two</p></body>`)
	p := NewKeys(doc.Root()).Node("k1")
	second := TextChild(p, 1)
	if second == nil || second.Data != "two" {
		t.Fatalf("TextChild(1) = %v", second)
	}
	if TextIndex(second) != 1 {
		t.Errorf("TextIndex = %d, want 1", TextIndex(second))
	}
	if TextChild(p, 2) != nil {
		t.Error("TextChild past end must be nil")
	}
}

func TestBridgeScript(t *testing.T) {
	for _, want := range []string{KeyAttr, "window.__veil", "MutationObserver", "selectionchange"} {
		if !strings.Contains(bridgeJS, want) {
			t.Errorf("page script missing %q", want)
		}
	}
}
