// Command domveil masks a document on behalf of an external classifier.
//
// Usage:
//
//	domveil -src page.html                      # static file, commands on stdin
//	domveil -src https://example.com -http :8088
//	domveil -live https://example.com           # mirror a page open in Chrome
//	domveil -src page.html -mcp                 # MCP tools over stdio
//
// Outbound messages go to the sinks named in the config (stdout by default).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/veil/domveil"
	"github.com/hazyhaar/veil/shield"
)

var version = "dev"

var errUsage = errors.New("usage: domveil [-config <file>] -src <file|url> | -live <url> [-http <addr>] [-mcp] [-render <file>]")

type flags struct {
	configPath string
	src        string
	liveURL    string
	httpAddr   string
	renderPath string
	mcp        bool
	stdin      bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "path to domveil.yaml config file")
	flag.StringVar(&f.src, "src", "", "HTML file or http(s) URL to mask")
	flag.StringVar(&f.liveURL, "live", "", "open URL in Chrome and mask the live page")
	flag.StringVar(&f.httpAddr, "http", "", "serve the HTTP API on this address (overrides config)")
	flag.StringVar(&f.renderPath, "render", "", "write the masked document to this file on exit")
	flag.BoolVar(&f.mcp, "mcp", false, "serve MCP tools over stdio")
	flag.BoolVar(&f.stdin, "stdin", true, "read JSON-lines commands from stdin (ignored with -mcp)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, logger, f, os.Stdin)
	stop()
	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("domveil: fatal", "error", err)
		os.Exit(1)
	}
}

// run serves one document until a signal arrives or a server fails. A static
// document driven only by stdin also ends once stdin is exhausted.
func run(ctx context.Context, logger *slog.Logger, f flags, stdin io.Reader) error {
	if (f.src == "") == (f.liveURL == "") {
		return errUsage
	}

	cfg := domveil.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = domveil.LoadConfigFile(f.configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if f.httpAddr != "" {
		cfg.HTTP.Addr = f.httpAddr
	}
	if f.mcp {
		// stdout carries the MCP stream.
		for i, sc := range cfg.Sinks {
			if sc.Type == "" || sc.Type == "stdout" {
				logger.Warn("domveil: stdout sink moved to stderr for MCP", "sink", i)
				cfg.Sinks[i].Type = "stderr"
			}
		}
	}

	// The loop outlives the signal so the document can still be rendered.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	var (
		s       *domveil.Session
		runLoop func(context.Context) error
	)
	opts := []domveil.Option{domveil.WithLogger(logger)}
	if f.liveURL != "" {
		l, err := domveil.OpenLive(ctx, cfg, f.liveURL, opts...)
		if err != nil {
			return fmt.Errorf("live: %w", err)
		}
		defer l.Close()
		s, runLoop = l.Session(), l.Run
	} else {
		sess, src, err := domveil.Load(ctx, cfg, f.src, opts...)
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		defer sess.Close()
		logger.Info("domveil: document loaded", "source", src.Location, "title", src.Title, "needs_browser", src.NeedsBrowser)
		s, runLoop = sess, sess.Run
	}

	errc := make(chan error, 3)
	stdinDone := make(chan struct{})
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := runLoop(loopCtx); err != nil {
			errc <- fmt.Errorf("session: %w", err)
		}
	}()

	var srv *http.Server
	if cfg.HTTP.Addr != "" {
		srv = newHTTPServer(cfg.HTTP.Addr, s, logger)
		go func() {
			logger.Info("domveil: http listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("http: %w", err)
			}
		}()
	}

	switch {
	case f.mcp:
		go func() {
			if err := s.NewMCPServer(version).Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				errc <- fmt.Errorf("mcp: %w", err)
			}
		}()
	case f.stdin:
		exitOnEOF := cfg.HTTP.Addr == "" && f.liveURL == ""
		go func() {
			if err := s.ServeLines(ctx, stdin); err != nil && ctx.Err() == nil {
				errc <- fmt.Errorf("stdin: %w", err)
				return
			}
			logger.Debug("domveil: stdin closed")
			if exitOnEOF {
				close(stdinDone)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	case <-stdinDone:
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("domveil: http shutdown", "error", err)
		}
		cancel()
	}
	if f.renderPath != "" {
		if err := render(s, f.renderPath); err != nil {
			logger.Error("domveil: render", "error", err)
		}
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := s.Drain(drainCtx); err != nil {
		logger.Warn("domveil: drain", "error", err)
	}
	cancel()
	stopLoop()
	<-loopDone
	return runErr
}

func newHTTPServer(addr string, s *domveil.Session, logger *slog.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range shield.DefaultStack(logger) {
		r.Use(mw)
	}
	s.RegisterHTTP(r)
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func render(s *domveil.Session, path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Render(ctx, fh); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
