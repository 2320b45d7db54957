// Package fetcher loads the document a session masks when no live browser
// is attached: an HTTP GET or a local file, sanitised so that only inert
// markup reaches the session.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/veil/domveil/internal/dom"
)

// maxBody caps a fetched or read document.
const maxBody = 10 << 20

// Result is a loaded, sanitised document.
type Result struct {
	Source     string
	Title      string
	HTML       []byte // sanitised, wrapped in <html><body>
	StatusCode int    // 0 for files
	// Sufficient is false when the raw page looks like a script-rendered
	// shell that needs a live browser.
	Sufficient bool
}

// Fetcher performs HTTP GETs and file reads.
type Fetcher struct {
	client   *http.Client
	ua       string
	sanitize *Sanitizer
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		ua:       "Mozilla/5.0 (compatible; DOMVeil/1.0)",
		sanitize: NewSanitizer(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Load fetches src when it is an http(s) URL and reads it from disk
// otherwise.
func (f *Fetcher) Load(ctx context.Context, src string) (*Result, error) {
	if u, err := url.Parse(src); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return f.Fetch(ctx, src)
	}
	return f.ReadFile(src)
}

// Fetch GETs a URL.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetcher: %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}

	res, err := f.prepare(pageURL, body)
	if err != nil {
		return nil, err
	}
	res.StatusCode = resp.StatusCode

	f.logger.Debug("fetcher: fetched",
		"url", pageURL, "status", resp.StatusCode,
		"size", len(body), "sufficient", res.Sufficient)
	return res, nil
}

// ReadFile loads a local HTML file.
func (f *Fetcher) ReadFile(path string) (*Result, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fetcher: open: %w", err)
	}
	defer fh.Close()

	body, err := io.ReadAll(io.LimitReader(fh, maxBody))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read: %w", err)
	}
	res, err := f.prepare(path, body)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("fetcher: read file", "path", path, "size", len(body))
	return res, nil
}

func (f *Fetcher) prepare(src string, raw []byte) (*Result, error) {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("fetcher: parse: %w", err)
	}

	res := &Result{Source: src, Sufficient: IsSufficient(root)}
	if t := dom.FindFirst(root, atom.Title); t != nil {
		res.Title = dom.CollapseText(titleText(t))
	}

	var inner bytes.Buffer
	body := dom.FindFirst(root, atom.Body)
	if body != nil {
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&inner, c); err != nil {
				return nil, fmt.Errorf("fetcher: render body: %w", err)
			}
		}
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html><html><head></head><body>")
	out.Write(f.sanitize.Bytes(inner.Bytes()))
	out.WriteString("</body></html>")
	res.HTML = out.Bytes()
	return res, nil
}

// titleText returns the raw text of <title>, which InnerText skips.
func titleText(t *html.Node) string {
	var b strings.Builder
	for c := t.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
