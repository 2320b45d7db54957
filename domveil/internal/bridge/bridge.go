// Package bridge connects a session to its controller: inbound commands
// are routed to the visibility machine and the selection handler, outbound
// messages are queued for the sinks, and transports (stdio lines, HTTP)
// carry both directions.
package bridge

import (
	"log/slog"

	"github.com/hazyhaar/veil/domveil/internal/selection"
	"github.com/hazyhaar/veil/domveil/internal/visibility"
	"github.com/hazyhaar/veil/domveil/protocol"
)

// Router routes decoded controller commands. It must run on the session
// event loop.
type Router struct {
	vis    *visibility.Machine
	sel    *selection.Handler
	logger *slog.Logger
}

// NewRouter creates a command Router.
func NewRouter(vis *visibility.Machine, sel *selection.Handler, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{vis: vis, sel: sel, logger: logger}
}

// Handle applies one command and reports whether it changed anything.
// Unknown commands are ignored.
func (r *Router) Handle(msg protocol.Inbound) bool {
	var changed bool
	switch m := msg.(type) {
	case protocol.Hide:
		changed = r.vis.HideCommand(m.ClassName)
	case protocol.HideSelectionForNewCategory:
		changed = r.sel.HideForNewCategory()
	case protocol.SelectionFlagged:
		changed = r.sel.Flag(m.Category)
	case protocol.SelectionUnflagged:
		changed = r.vis.SelectionUnflagged()
	case protocol.UnflagIgnored:
		changed = r.vis.UnflagIgnored()
	default:
		r.logger.Debug("bridge: ignoring unknown command", "name", msg.Action())
		return false
	}
	r.logger.Debug("bridge: command handled", "name", msg.Action(), "changed", changed)
	return changed
}
