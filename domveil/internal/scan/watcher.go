package scan

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/veil/domveil/internal/dom"
	"github.com/hazyhaar/veil/domveil/internal/element"
	"github.com/hazyhaar/veil/domveil/protocol"
)

// Watcher processes child-list mutation records. Each delivery produces at
// most one predict message holding every element identified in it.
type Watcher struct {
	doc    *dom.Document
	reg    *element.Registry
	emit   protocol.Emitter
	logger *slog.Logger
}

// NewWatcher creates a Watcher. Call Attach to subscribe it.
func NewWatcher(doc *dom.Document, reg *element.Registry, emit protocol.Emitter, opts ...Option) *Watcher {
	o := buildOptions(opts)
	return &Watcher{doc: doc, reg: reg, emit: emit, logger: o.logger}
}

// Attach subscribes the watcher to the document's mutation records.
func (w *Watcher) Attach() {
	w.doc.Observe(w.Handle)
}

// Handle processes one delivery of records. Nodes removed and not
// re-attached are forgotten; added nodes that are still attached are visited
// with all their descendants in document order. A node re-created within the
// same delivery keeps the id of the one it replaces.
func (w *Watcher) Handle(records []dom.Record) {
	defer w.reg.Settle()
	for _, rec := range records {
		for _, n := range rec.Removed {
			if !w.doc.Attached(n) {
				w.reg.Forget(n)
			}
		}
	}

	group := make(map[string]string)
	for _, rec := range records {
		for _, added := range rec.Added {
			if !w.doc.Attached(added) {
				continue
			}
			dom.Walk(added, func(n *html.Node) bool {
				if el, created := w.reg.Identify(n); created {
					group[el.ID] = el.Text
				}
				return true
			})
		}
	}

	if len(group) == 0 {
		return
	}
	w.logger.Debug("scan: mutation batch identified", "elements", len(group), "records", len(records))
	w.emit.Emit(protocol.Predict{Content: group})
}
