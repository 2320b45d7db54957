package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/veil/dbopen"
	"github.com/hazyhaar/veil/domveil/protocol"
)

type failSink struct {
	err   error
	calls int
}

func (f *failSink) Send(context.Context, protocol.Outbound) error {
	f.calls++
	return f.err
}

func (f *failSink) Close() error { return f.err }

func TestStdout_OneLinePerMessage(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	ctx := context.Background()

	if err := s.Send(ctx, protocol.TextHidden{Text: "rude"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(ctx, protocol.ElementRevealed{}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	msg, err := protocol.UnmarshalOutbound([]byte(lines[0]))
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := msg.(protocol.TextHidden); !ok || got.Text != "rude" {
		t.Errorf("line 0: got %#v", msg)
	}
	if !strings.Contains(lines[1], `"messageType":"elementRevealed"`) {
		t.Errorf("line 1: %s", lines[1])
	}
}

func TestCallback(t *testing.T) {
	var got []protocol.Outbound
	cb := NewCallback(func(_ context.Context, msg protocol.Outbound) error {
		got = append(got, msg)
		return nil
	})
	cb.Send(context.Background(), protocol.SelectionEnded{})
	if len(got) != 1 || got[0].Kind() != protocol.KindSelectionEnded {
		t.Fatalf("got %v", got)
	}

	if err := NewCallback(nil).Send(context.Background(), protocol.SelectionEnded{}); err != nil {
		t.Fatalf("nil callback: %v", err)
	}
}

func TestRouter_FanOutFirstError(t *testing.T) {
	first := errors.New("first")
	a := &failSink{err: first}
	b := &failSink{err: errors.New("second")}
	c := &failSink{}
	r := NewRouter(nil, a, b)
	r.Add(c)

	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	err := r.Send(context.Background(), protocol.ElementRevealed{})
	if !errors.Is(err, first) {
		t.Fatalf("got %v, want first error", err)
	}
	if a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Errorf("calls: %d %d %d, want 1 each", a.calls, b.calls, c.calls)
	}
	if err := r.Close(); !errors.Is(err, first) {
		t.Errorf("Close: got %v", err)
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	err := wh.Send(context.Background(), protocol.AddTextToAPI{Text: "buy now", Category: "spam"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}

	var m map[string]string
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatal(err)
	}
	if m["messageType"] != "addTextToAPI" || m["text"] != "buy now" || m["category"] != "spam" {
		t.Errorf("body = %s", body)
	}
}

func TestWebhook_ExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(2), WithWebhookBackoff(time.Millisecond))
	if err := wh.Send(context.Background(), protocol.ElementRevealed{}); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestJournal_AppendAndList(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(JournalSchema))
	j := NewJournal(db, "sess-1")
	other := NewJournal(db, "sess-2")
	ctx := context.Background()

	msgs := []protocol.Outbound{
		protocol.Predict{Content: map[string]string{"VeilElement0": "hello"}},
		protocol.TextHidden{Text: "rude"},
	}
	for _, m := range msgs {
		if err := j.Send(ctx, m); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	other.Send(ctx, protocol.ElementRevealed{})

	entries, err := j.Entries(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Kind != protocol.KindPredict || entries[1].Kind != protocol.KindTextHidden {
		t.Errorf("kinds: %s %s", entries[0].Kind, entries[1].Kind)
	}
	if !strings.HasPrefix(entries[0].ID, "jrn_") {
		t.Errorf("id = %q", entries[0].ID)
	}
	back, err := protocol.UnmarshalOutbound([]byte(entries[1].Payload))
	if err != nil {
		t.Fatal(err)
	}
	if back.(protocol.TextHidden).Text != "rude" {
		t.Errorf("payload = %s", entries[1].Payload)
	}
	if err := j.Close(); err != nil {
		t.Errorf("Close on borrowed db: %v", err)
	}
}

func TestOpenJournal_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "journal.db")
	j, err := OpenJournal(path, "s")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	if err := j.Send(context.Background(), protocol.SelectionEnded{}); err != nil {
		t.Fatal(err)
	}
}
