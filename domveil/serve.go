package domveil

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/veil/domveil/internal/bridge"
	"github.com/hazyhaar/veil/domveil/internal/fetcher"
)

// Source describes where a loaded document came from.
type Source struct {
	Location   string
	Title      string
	StatusCode int
	// NeedsBrowser is set when the page looks rendered by scripts; masking
	// the static copy will miss most of its content.
	NeedsBrowser bool
}

// Load fetches an http(s) URL or reads a local file, sanitises the markup
// and prepares a session over it.
func Load(ctx context.Context, cfg *Config, src string, opts ...Option) (*Session, *Source, error) {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	res, err := fetcher.New(fetcher.WithLogger(o.logger)).Load(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	s, err := New(cfg, bytes.NewReader(res.HTML), opts...)
	if err != nil {
		return nil, nil, err
	}
	info := &Source{
		Location:     res.Source,
		Title:        res.Title,
		StatusCode:   res.StatusCode,
		NeedsBrowser: !res.Sufficient,
	}
	if info.NeedsBrowser {
		s.logger.Warn("domveil: static document looks script-rendered, consider -live", "source", src)
	}
	return s, info, nil
}

// ServeLines applies JSON-lines commands read from r until EOF or ctx is
// done. Malformed lines are logged and skipped.
func (s *Session) ServeLines(ctx context.Context, r io.Reader) error {
	return bridge.ReadLines(ctx, r, s, s.logger)
}

// RegisterHTTP mounts the session routes on r.
func (s *Session) RegisterHTTP(r chi.Router) {
	bridge.NewHTTP(s, s.logger).RegisterHTTP(r)
}

// HTTPHandler returns a standalone handler serving the session routes.
func (s *Session) HTTPHandler() http.Handler {
	return bridge.NewHTTP(s, s.logger).Handler()
}
