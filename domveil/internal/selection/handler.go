package selection

import (
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/veil/domveil/internal/element"
	"github.com/hazyhaar/veil/domveil/internal/schedule"
	"github.com/hazyhaar/veil/domveil/internal/visibility"
	"github.com/hazyhaar/veil/domveil/protocol"
)

// DefaultEndedDelay defers the selectionEnded notice so other listeners of
// the same change run first.
const DefaultEndedDelay = 10 * time.Millisecond

// Handler tracks the current selection and runs the selection flows.
type Handler struct {
	reg    *element.Registry
	vis    *visibility.Machine
	emit   protocol.Emitter
	sched  schedule.Scheduler
	delay  time.Duration
	logger *slog.Logger

	current Selection
}

// Option configures a Handler.
type Option func(*Handler)

// WithEndedDelay sets the selectionEnded delay. Default: 10ms.
func WithEndedDelay(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.delay = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a Handler.
func NewHandler(reg *element.Registry, vis *visibility.Machine, emit protocol.Emitter, sched schedule.Scheduler, opts ...Option) *Handler {
	h := &Handler{
		reg:    reg,
		vis:    vis,
		emit:   emit,
		sched:  sched,
		delay:  DefaultEndedDelay,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Current returns the selection last reported or produced by snapping.
func (h *Handler) Current() Selection { return h.current }

// Index builds a fresh index over the document body.
func (h *Handler) Index() *Index {
	return NewIndex(h.reg.Doc().Body())
}

// Changed records a new user selection. An empty one schedules a
// selectionEnded notice; otherwise selectionChanged is sent with the text
// and whether the anchor sits in a hidden element.
func (h *Handler) Changed(sel Selection) {
	h.current = sel
	text := ""
	if !sel.IsZero() {
		text = h.Index().String(sel)
	}
	if text == "" {
		h.sched.AfterFunc(h.delay, func() {
			h.emit.Emit(protocol.SelectionEnded{})
		})
		return
	}
	h.emit.Emit(protocol.SelectionChanged{
		Content:         text,
		IsHiddenElement: h.anchorHidden(sel.Anchor.Node),
	})
}

func (h *Handler) anchorHidden(n *html.Node) bool {
	if n.Type == html.TextNode {
		n = n.Parent
	}
	el := h.reg.Nearest(n)
	return el != nil && el.State == element.Hidden
}

// HideForNewCategory snaps the selection, hides the elements it spans and
// reports the selected text as textHidden.
func (h *Handler) HideForNewCategory() bool {
	text, targets, ok := h.snapAndResolve()
	if !ok {
		return false
	}
	for _, el := range targets {
		h.vis.Hide(el)
	}
	h.emit.Emit(protocol.TextHidden{Text: text})
	return true
}

// Flag snaps the selection, hides the elements it spans and reports the
// selected text under category.
func (h *Handler) Flag(category string) bool {
	text, targets, ok := h.snapAndResolve()
	if !ok {
		return false
	}
	for _, el := range targets {
		h.vis.Hide(el)
	}
	h.emit.Emit(protocol.AddTextToAPI{Text: text, Category: category})
	return true
}

func (h *Handler) snapAndResolve() (string, []*element.Element, bool) {
	if h.current.IsZero() {
		h.logger.Debug("selection: no selection")
		return "", nil, false
	}
	ix := h.Index()
	snapped, ok := Snap(ix, h.current)
	if !ok {
		h.logger.Debug("selection: collapsed or detached selection")
		return "", nil, false
	}
	h.current = snapped
	targets := Resolve(ix, h.reg, snapped)
	return ix.String(snapped), targets, true
}
