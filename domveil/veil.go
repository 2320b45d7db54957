// Package domveil masks the elements of a rendered document on behalf of
// an external classifier. A Session scans the document, asks the controller
// to classify every text and image element, hides or reveals elements on
// command and on user gestures, and reports user text selections back.
//
// domveil does not decide what to hide. Classification requests and user
// reports are emitted to sinks (stdout, webhook, journal, callback); the
// controller answers with commands through Dispatch or a transport.
package domveil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/hazyhaar/veil/domveil/internal/bridge"
	"github.com/hazyhaar/veil/domveil/internal/config"
	"github.com/hazyhaar/veil/domveil/internal/dom"
	"github.com/hazyhaar/veil/domveil/internal/element"
	"github.com/hazyhaar/veil/domveil/internal/scan"
	"github.com/hazyhaar/veil/domveil/internal/schedule"
	"github.com/hazyhaar/veil/domveil/internal/selection"
	"github.com/hazyhaar/veil/domveil/internal/sink"
	"github.com/hazyhaar/veil/domveil/internal/visibility"
	"github.com/hazyhaar/veil/domveil/protocol"
	"github.com/hazyhaar/veil/idgen"
)

var (
	// ErrClosed is returned for events submitted after the session stopped.
	ErrClosed = errors.New("domveil: session closed")
	// ErrNotFound is returned when an element id is not identified.
	ErrNotFound = bridge.ErrNotFound
	// ErrRunning is returned by a second call to Run.
	ErrRunning = errors.New("domveil: session already running")
)

// maxFlushRounds bounds mutation deliveries per event. Observers do not
// mutate the child list, so one round is the norm.
const maxFlushRounds = 8

type event struct {
	fn   func()
	done chan struct{}
}

// Session owns one document and every piece of state attached to it. All
// state is touched only by the goroutine running Run; the exported methods
// submit events to it and wait for them to complete.
type Session struct {
	id     string
	cfg    *config.Config
	doc    *dom.Document
	reg    *element.Registry
	scan   *scan.Scanner
	watch  *scan.Watcher
	vis    *visibility.Machine
	sel    *selection.Handler
	cmds   *bridge.Router
	outbox *bridge.Outbox
	logger *slog.Logger

	events    chan event
	quit      chan struct{}
	stopped   chan struct{}
	running   atomic.Bool
	closeOnce sync.Once

	afterEvent []func()
}

// Option configures a Session.
type Option func(*options)

type options struct {
	logger *slog.Logger
	sinks  []sink.Sink
	id     string
	sched  schedule.Scheduler
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSinks delivers outbound messages to the given sinks instead of the
// ones named in the configuration.
func WithSinks(sinks ...Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

// WithSessionID sets the session id. Default: "ses_" + UUIDv7.
func WithSessionID(id string) Option {
	return func(o *options) { o.id = id }
}

// withScheduler replaces the timer source. Callbacks must be run on the
// event loop by the caller.
func withScheduler(s schedule.Scheduler) Option {
	return func(o *options) { o.sched = s }
}

// New parses an HTML document from r and prepares a session over it. A nil
// cfg uses defaults. Call Run to start processing.
func New(cfg *Config, r io.Reader, opts ...Option) (*Session, error) {
	doc, err := dom.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("domveil: %w", err)
	}
	return newSession(cfg, doc, opts...)
}

// NewFromString is New over an in-memory document.
func NewFromString(cfg *Config, markup string, opts ...Option) (*Session, error) {
	return New(cfg, bytes.NewReader([]byte(markup)), opts...)
}

func newSession(cfg *Config, doc *dom.Document, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Markers.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.id == "" {
		o.id = idgen.Prefixed("ses_", idgen.UUIDv7())()
	}
	logger := o.logger.With("session", o.id)

	sinks := o.sinks
	if len(sinks) == 0 {
		built, err := BuildSinks(cfg, o.id, logger)
		if err != nil {
			return nil, err
		}
		sinks = built
	}

	s := &Session{
		id:      o.id,
		cfg:     cfg,
		doc:     doc,
		logger:  logger,
		events:  make(chan event, 64),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	s.outbox = bridge.NewOutbox(sink.NewRouter(logger, sinks...), bridge.DefaultOutboxSize, logger)

	sched := o.sched
	if sched == nil {
		sched = loopScheduler{s}
	}

	m := cfg.Markers
	s.reg = element.NewRegistry(doc,
		element.WithMarkers(element.Markers{IDPrefix: m.IDPrefix, Group: m.Group, Hidden: m.Hidden, Revealed: m.Revealed}),
		element.WithLogger(logger))
	s.scan = scan.NewScanner(s.reg, s.outbox, scan.WithBatchSize(cfg.BatchSize), scan.WithLogger(logger))
	s.watch = scan.NewWatcher(doc, s.reg, s.outbox, scan.WithLogger(logger))
	s.vis = visibility.New(s.reg, s.outbox, sched,
		visibility.WithLongPress(cfg.LongPress),
		visibility.WithDefaultCategory(cfg.DefaultCategory),
		visibility.WithLogger(logger))
	s.sel = selection.NewHandler(s.reg, s.vis, s.outbox, sched,
		selection.WithEndedDelay(cfg.SelectionEndedDelay),
		selection.WithLogger(logger))
	s.cmds = bridge.NewRouter(s.vis, s.sel, logger)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Run performs the initial scan, then processes events until ctx is done or
// Close is called.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(s.stopped)

	s.step(event{fn: s.start})

	for {
		select {
		case ev := <-s.events:
			s.step(ev)
		case <-s.quit:
			s.logger.Info("domveil: session stopped")
			return nil
		case <-ctx.Done():
			s.logger.Info("domveil: session stopped", "reason", ctx.Err())
			return nil
		}
	}
}

func (s *Session) start() {
	n := s.scan.Initial(s.doc.Body())
	s.watch.Attach()
	s.logger.Info("domveil: session started", "elements", n)
}

// step runs one event to completion, then delivers the child-list records
// it produced.
func (s *Session) step(ev event) {
	ev.fn()
	for i := 0; i < maxFlushRounds && s.doc.Pending() > 0; i++ {
		s.doc.Flush()
	}
	for _, fn := range s.afterEvent {
		fn()
	}
	if ev.done != nil {
		close(ev.done)
	}
}

// do runs fn on the event loop and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case s.events <- event{fn: fn, done: done}:
	case <-s.quit:
		return ErrClosed
	case <-s.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting. Events posted after the loop stopped are
// dropped.
func (s *Session) post(fn func()) {
	select {
	case s.events <- event{fn: fn}:
	case <-s.quit:
	case <-s.stopped:
	}
}

// onAfterEvent registers fn to run on the loop after every event.
func (s *Session) onAfterEvent(fn func()) {
	s.afterEvent = append(s.afterEvent, fn)
}

// Dispatch applies a controller command.
func (s *Session) Dispatch(ctx context.Context, msg protocol.Inbound) error {
	return s.do(ctx, func() { s.cmds.Handle(msg) })
}

// DispatchJSON decodes and applies a controller command. Malformed input is
// logged and returned as an error without touching the document.
func (s *Session) DispatchJSON(ctx context.Context, data []byte) error {
	msg, err := protocol.UnmarshalInbound(data)
	if err != nil {
		s.logger.Warn("domveil: dropping malformed command", "error", err)
		return err
	}
	return s.Dispatch(ctx, msg)
}

// Click delivers a click on the element with the given id. It reports
// whether the default action was suppressed.
func (s *Session) Click(ctx context.Context, id string) (bool, error) {
	var prevented bool
	var found bool
	err := s.do(ctx, func() {
		el := s.reg.Lookup(id)
		if el == nil {
			return
		}
		found = true
		prevented = s.vis.Click(el.Node)
	})
	if err == nil && !found {
		err = fmt.Errorf("domveil: click %s: %w", id, ErrNotFound)
	}
	return prevented, err
}

// Touch delivers a touch event on the element with the given id.
func (s *Session) Touch(ctx context.Context, id string, phase protocol.TouchPhase) error {
	var found bool
	err := s.do(ctx, func() {
		el := s.reg.Lookup(id)
		if el == nil {
			return
		}
		found = true
		s.touch(el.Node, phase)
	})
	if err == nil && !found {
		err = fmt.Errorf("domveil: touch %s: %w", id, ErrNotFound)
	}
	return err
}

func (s *Session) touch(n *html.Node, phase protocol.TouchPhase) {
	switch phase {
	case protocol.TouchStart:
		s.vis.TouchStart(n)
	case protocol.TouchEnd:
		s.vis.TouchEnd(n)
	case protocol.TouchLeave:
		s.vis.TouchLeave(n)
	case protocol.TouchCancel:
		s.vis.TouchCancel(n)
	}
}

// Select reports a user selection placed by element id and text offset.
// An empty AnchorID clears the selection.
func (s *Session) Select(ctx context.Context, req protocol.SelectRequest) error {
	var missing string
	err := s.do(ctx, func() {
		if req.AnchorID == "" {
			s.sel.Changed(selection.Selection{})
			return
		}
		focusID := req.FocusID
		if focusID == "" {
			focusID = req.AnchorID
		}
		anchor, focus := s.reg.Lookup(req.AnchorID), s.reg.Lookup(focusID)
		switch {
		case anchor == nil:
			missing = req.AnchorID
			return
		case focus == nil:
			missing = focusID
			return
		}
		ix := s.sel.Index()
		aOff, fOff := req.AnchorOffset, req.FocusOffset
		if req.UTF16 {
			aOff = selection.UTF16ToByte(ix.ElementText(anchor.Node), aOff)
			fOff = selection.UTF16ToByte(ix.ElementText(focus.Node), fOff)
		}
		sel, ok := ix.Select(anchor.Node, aOff, focus.Node, fOff)
		if !ok {
			s.sel.Changed(selection.Selection{})
			return
		}
		s.sel.Changed(sel)
	})
	if err == nil && missing != "" {
		err = fmt.Errorf("domveil: select %s: %w", missing, ErrNotFound)
	}
	return err
}

// Mutate inserts markup under an identified element (the body when
// ParentID is empty) or removes an identified element. Inserted nodes are
// scanned as a mutation batch.
func (s *Session) Mutate(ctx context.Context, req protocol.MutateRequest) error {
	var opErr error
	err := s.do(ctx, func() {
		if req.RemoveID != "" {
			el := s.reg.Lookup(req.RemoveID)
			if el == nil {
				opErr = fmt.Errorf("domveil: remove %s: %w", req.RemoveID, ErrNotFound)
				return
			}
			s.doc.RemoveChild(el.Node)
		}
		if req.HTML == "" {
			return
		}
		parent := s.doc.Body()
		if req.ParentID != "" {
			el := s.reg.Lookup(req.ParentID)
			if el == nil {
				opErr = fmt.Errorf("domveil: mutate %s: %w", req.ParentID, ErrNotFound)
				return
			}
			parent = el.Node
		}
		nodes, err := dom.ParseFragment(req.HTML, parent)
		if err != nil {
			opErr = fmt.Errorf("domveil: mutate: %w", err)
			return
		}
		for _, n := range nodes {
			s.doc.AppendChild(parent, n)
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// Elements lists the identified elements in document order.
func (s *Session) Elements(ctx context.Context) ([]protocol.ElementInfo, error) {
	var out []protocol.ElementInfo
	err := s.do(ctx, func() {
		for _, el := range s.reg.Within(s.doc.Root()) {
			out = append(out, protocol.ElementInfo{
				ID:    el.ID,
				Text:  el.Text,
				State: el.State.String(),
				Tag:   el.Node.Data,
			})
		}
	})
	return out, err
}

// LastRevealed returns the id of the most recently revealed element, or "".
func (s *Session) LastRevealed(ctx context.Context) (string, error) {
	var id string
	err := s.do(ctx, func() {
		if el := s.vis.LastRevealed(); el != nil {
			id = el.ID
		}
	})
	return id, err
}

// Render writes the document with its current masking to w.
func (s *Session) Render(ctx context.Context, w io.Writer) error {
	var buf bytes.Buffer
	var renderErr error
	if err := s.do(ctx, func() { renderErr = s.doc.Render(&buf) }); err != nil {
		return err
	}
	if renderErr != nil {
		return fmt.Errorf("domveil: render: %w", renderErr)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Drain waits until every message emitted by events completed so far has
// been delivered to the sinks.
func (s *Session) Drain(ctx context.Context) error {
	return s.outbox.Drain(ctx)
}

// Close stops the loop, delivers queued messages and closes the sinks.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		if s.running.Load() {
			<-s.stopped
		}
		err = s.outbox.Close()
	})
	return err
}
