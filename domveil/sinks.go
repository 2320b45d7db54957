package domveil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hazyhaar/veil/domveil/internal/sink"
	"github.com/hazyhaar/veil/domveil/protocol"
)

// Sink is the output interface for outbound controller messages.
type Sink = sink.Sink

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process sink for a controller linked into
// the same binary.
func NewCallbackSink(fn func(ctx context.Context, msg protocol.Outbound) error) Sink {
	return sink.NewCallback(fn)
}

// OpenJournalSink opens an SQLite journal recording every message of the
// session.
func OpenJournalSink(path, sessionID string) (Sink, error) {
	return sink.OpenJournal(path, sessionID)
}

// BuildSinks creates the sinks named in cfg.
func BuildSinks(cfg *Config, sessionID string, logger *slog.Logger) ([]Sink, error) {
	var out []Sink
	for i, sc := range cfg.Sinks {
		switch sc.Type {
		case "", "stdout":
			out = append(out, NewStdoutSink(nil))
		case "stderr":
			out = append(out, NewStdoutSink(os.Stderr))
		case "webhook":
			out = append(out, NewWebhookSink(sc.URL, logger))
		case "journal":
			j, err := OpenJournalSink(sc.Path, sessionID)
			if err != nil {
				closeAll(out)
				return nil, fmt.Errorf("domveil: sinks[%d]: %w", i, err)
			}
			out = append(out, j)
		default:
			closeAll(out)
			return nil, fmt.Errorf("domveil: sinks[%d]: unknown type %q", i, sc.Type)
		}
	}
	return out, nil
}

func closeAll(sinks []Sink) {
	for _, s := range sinks {
		s.Close()
	}
}
