// Package scan turns the document into classification requests: one full
// pass at startup, then incremental passes over nodes added by mutations.
package scan

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/veil/domveil/internal/dom"
	"github.com/hazyhaar/veil/domveil/internal/element"
	"github.com/hazyhaar/veil/domveil/protocol"
)

// Scanner performs the initial document pass.
type Scanner struct {
	reg       *element.Registry
	emit      protocol.Emitter
	batchSize int
	logger    *slog.Logger
	done      bool
}

// Option configures a Scanner or a Watcher.
type Option func(*options)

type options struct {
	batchSize int
	logger    *slog.Logger
}

// WithBatchSize sets the initial-scan batch size. Default: 25.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{batchSize: DefaultBatchSize, logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// NewScanner creates a Scanner writing to reg and emitting to emit.
func NewScanner(reg *element.Registry, emit protocol.Emitter, opts ...Option) *Scanner {
	o := buildOptions(opts)
	return &Scanner{reg: reg, emit: emit, batchSize: o.batchSize, logger: o.logger}
}

// Initial walks the descendants of body in document order, identifies every
// qualifying node and emits the results in fixed-size predict batches. It
// runs once; later calls return 0 without touching the document.
func (s *Scanner) Initial(body *html.Node) int {
	if s.done {
		return 0
	}
	s.done = true

	b := NewBatcher(s.batchSize, s.emit)
	count := 0
	dom.Walk(body, func(n *html.Node) bool {
		if n == body {
			return true
		}
		el, created := s.reg.Identify(n)
		if created {
			b.Add(el.ID, el.Text)
			count++
		}
		return true
	})
	b.Close()

	s.logger.Info("scan: initial pass complete", "elements", count, "batches", b.Sent())
	return count
}
