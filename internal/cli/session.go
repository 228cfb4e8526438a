package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/histcore/internal/config"
	"github.com/roach88/histcore/internal/engine"
	"github.com/roach88/histcore/internal/policy"
	"github.com/roach88/histcore/internal/service"
	"github.com/roach88/histcore/internal/store"
)

// errServiceClosed is returned by await when the service refused the query.
var errServiceClosed = errors.New("history service is closed")

// session is one opened history profile.
type session struct {
	cfg    *config.Config
	svc    *service.Service
	logger *slog.Logger
	failed bool
}

// newLogger builds the stderr logger from config; --verbose forces debug.
func newLogger(cfg config.LoggingConfig, verbose bool, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// openSession loads config, opens the store and starts the service.
func openSession(opts *RootOptions, errOut io.Writer) (*session, error) {
	cfg, err := config.LoadOrCreateAt(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger := newLogger(cfg.Logging, opts.Verbose, errOut)

	path := opts.Database
	if path == "" {
		if path, err = cfg.DatabasePath(); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to resolve database path", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create storage directory", err)
		}
	}

	logger.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	s := &session{cfg: cfg, logger: logger}
	s.svc = service.New(st,
		service.WithLogger(logger),
		service.WithEngineOptions(
			engine.WithPolicy(policy.NewRules(cfg.Capture)),
			engine.WithRetention(cfg.RetentionWindow()),
			engine.WithCacheGUID(cfg.Sync.CacheGUID),
		),
		service.WithProfileErrorHandler(func(code int, diagnostics string) {
			s.failed = true
			logger.Error("history profile failed", "code", code, "diagnostics", diagnostics)
		}),
	)
	return s, nil
}

// run drives the owner sequence while fn issues calls, then closes the
// service. Every callback and event has been delivered when run returns.
func (s *session) run(ctx context.Context, fn func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.svc.RunOwner(gctx)
	})
	g.Go(func() error {
		defer s.svc.Close(nil)
		return fn(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if s.failed {
		return NewExitError(ExitFailure, "history profile failed; see log for diagnostics")
	}
	return nil
}

// withSession opens a session for one command and runs fn in it.
func withSession(ctx context.Context, opts *RootOptions, errOut io.Writer, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(opts, errOut)
	if err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		return fn(ctx, s)
	})
}

// await issues one query and blocks until its callback ran on the owner
// sequence.
func await[T any](ctx context.Context, issue func(cb func(T, error)) *service.Ticket) (T, error) {
	type reply struct {
		v   T
		err error
	}
	var zero T

	ch := make(chan reply, 1)
	ticket := issue(func(v T, err error) { ch <- reply{v: v, err: err} })
	if ticket.Canceled() {
		return zero, errServiceClosed
	}

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		ticket.Cancel()
		return zero, ctx.Err()
	}
}

// barrier waits until every call issued before it has run, including the
// initial autocomplete cache load.
func barrier(ctx context.Context, svc *service.Service) error {
	_, err := await(ctx, func(cb func(service.Status, error)) *service.Ticket {
		return svc.Status(cb)
	})
	return err
}
