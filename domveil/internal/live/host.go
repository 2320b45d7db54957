// Package live mirrors a page open in Chrome into a veil session. A script
// injected in the page stamps a key on every element, reports gestures,
// selections and child-list mutations through a CDP binding, and applies
// the class and style patches the session produces.
package live

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

//go:embed bridge.js
var bridgeJS string

// DefaultBinding is the CDP binding name the page script reports through.
const DefaultBinding = "__veil_binding"

// ScriptOptions parameterise the page script.
type ScriptOptions struct {
	Binding  string `json:"binding"`
	IDPrefix string `json:"idPrefix"`
	Group    string `json:"group"`
	Hidden   string `json:"hidden"`
}

// Host drives the page side of a live session.
type Host struct {
	page   *rod.Page
	opts   ScriptOptions
	logger *slog.Logger
}

// NewHost creates a Host for page.
func NewHost(page *rod.Page, opts ScriptOptions, logger *slog.Logger) *Host {
	if opts.Binding == "" {
		opts.Binding = DefaultBinding
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{page: page, opts: opts, logger: logger}
}

// Inject installs the binding and the page script and returns the keyed
// document markup to mirror.
func (h *Host) Inject(ctx context.Context) (string, error) {
	if err := (proto.RuntimeAddBinding{Name: h.opts.Binding}).Call(h.page); err != nil {
		h.logger.Warn("live: addBinding failed (may already exist)", "error", err)
	}
	res, err := h.page.Context(ctx).Eval(bridgeJS, h.opts)
	if err != nil {
		return "", fmt.Errorf("live: inject: %w", err)
	}
	return WrapBody(res.Value.Str()), nil
}

// WrapBody turns a serialised <body> into a full document.
func WrapBody(body string) string {
	return "<!DOCTYPE html><html><head></head>" + body + "</html>"
}

// Listen delivers page events to fn until ctx is done. Malformed payloads
// are logged and skipped.
func (h *Host) Listen(ctx context.Context, fn func(Event)) {
	wait := h.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != h.opts.Binding {
			return
		}
		ev, err := ParseEvent(e.Payload)
		if err != nil {
			h.logger.Warn("live: dropping page event", "error", err)
			return
		}
		fn(ev)
	})
	wait()
}

// Apply writes class and style patches to the page.
func (h *Host) Apply(ctx context.Context, patches []Patch) error {
	if len(patches) == 0 {
		return nil
	}
	if _, err := h.page.Context(ctx).Eval(`(p) => window.__veil.apply(p)`, patches); err != nil {
		return fmt.Errorf("live: apply %d patches: %w", len(patches), err)
	}
	return nil
}

// Select moves the page selection.
func (h *Host) Select(ctx context.Context, sel SelectionPatch) error {
	res, err := h.page.Context(ctx).Eval(`(s) => window.__veil.select(s)`, sel)
	if err != nil {
		return fmt.Errorf("live: select: %w", err)
	}
	if !res.Value.Bool() {
		h.logger.Debug("live: selection target not found in page")
	}
	return nil
}
