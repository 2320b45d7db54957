package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun_UsageError(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	for _, f := range []flags{{}, {src: "a.html", liveURL: "https://example.com"}} {
		if err := run(context.Background(), logger, f, strings.NewReader("")); !errors.Is(err, errUsage) {
			t.Errorf("run(%+v) = %v, want errUsage", f, err)
		}
	}
}

func TestRun_StdinEOFEnds(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "page.html")
	if err := os.WriteFile(src, []byte(`<html><body><p>hello there</p></body></html>`), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "masked.html")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, slog.New(slog.DiscardHandler), flags{src: src, stdin: true, renderPath: out}, strings.NewReader(`{"name":"hide","className":"VeilElement0"}`+"\n"))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("run did not return after stdin closed")
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "VeilHidden") {
		t.Errorf("hide command not applied before exit:\n%s", data)
	}
}
