package engine

import (
	"log/slog"
	"time"

	"github.com/roach88/histcore/internal/cluster"
	"github.com/roach88/histcore/internal/expire"
	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/metrics"
	"github.com/roach88/histcore/internal/policy"
	"github.com/roach88/histcore/internal/store"
)

// Delegate receives what the engine reports outward. Both methods are
// called on the engine sequence.
type Delegate interface {
	// Event is called once per change, after the change committed.
	Event(e history.Event)

	// ProfileError is called at most once, when the store first fails.
	// Code is the SQLite extended result code, or 0 when the driver did
	// not supply one.
	ProfileError(code int, diagnostics string)
}

// PinnedURLs reports URLs kept alive by an external reference.
type PinnedURLs = expire.PinnedURLs

type nopDelegate struct{}

func (nopDelegate) Event(history.Event)      {}
func (nopDelegate) ProfileError(int, string) {}

// Engine is the single-writer history engine.
//
// Thread-safety model:
//   - every method must be called from the engine sequence
//   - the engine holds no locks; concurrent calls are a bug
//
// INVARIANTS:
//   - URL aggregates are recomputed in the transaction that changed visits
//   - referring and opener ids come from the tracker, so they are always
//     older than the visit being written
//   - once failed, the engine never writes again
type Engine struct {
	store     *store.Store
	policy    policy.Policy
	pinned    PinnedURLs
	delegate  Delegate
	expirer   *expire.Expirer
	clusters  *cluster.Manager
	tracker   *visitTracker
	redirects *redirectCache
	now       func() time.Time
	retention time.Duration
	cacheGUID string
	logger    *slog.Logger

	failed bool
	closed bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithPolicy sets the "may this URL be recorded" policy.
// Default: policy.AllowAll.
func WithPolicy(p policy.Policy) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithPinnedURLs sets the collaborator that keeps URLs alive through
// expiration.
func WithPinnedURLs(p PinnedURLs) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.pinned = p
		}
	}
}

// WithDelegate sets the receiver of events and profile errors.
func WithDelegate(d Delegate) EngineOption {
	return func(e *Engine) {
		if d != nil {
			e.delegate = d
		}
	}
}

// WithClock replaces time.Now. Tests pass a deterministic clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRetention sets the retention window. Imported rows older than the
// window are skipped. Zero keeps everything.
func WithRetention(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.retention = d
	}
}

// WithCacheGUID sets the sync originator id of this profile. Synced visits
// carrying it are echoes of local visits and are skipped.
func WithCacheGUID(guid string) EngineOption {
	return func(e *Engine) {
		e.cacheGUID = guid
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine over an open store. The engine does not own the
// store; the caller closes it after the engine sequence drained.
func New(s *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     s,
		policy:    policy.AllowAll,
		pinned:    expire.NoPins{},
		delegate:  nopDelegate{},
		tracker:   newVisitTracker(),
		redirects: newRedirectCache(maxRecentRedirects),
		now:       time.Now,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.expirer = expire.New(s, expire.WithPinnedURLs(e.pinned), expire.WithLogger(e.logger))
	e.clusters = cluster.New(s, e.logger)
	return e
}

// Failed reports whether the store has failed.
func (e *Engine) Failed() bool { return e.failed }

// Close stops the engine. Later calls return ErrClosed.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.logger.Info("history engine closed", "tracked_contexts", e.tracker.len())
}

// usable returns the error every operation reports once the engine stopped.
func (e *Engine) usable() error {
	if e.closed {
		return ErrClosed
	}
	if e.failed {
		return ErrFailed
	}
	return nil
}

// check wraps a store error for the caller. Only a fatal store error (see
// store.IsFatal) moves the engine into the failed state; the first one is
// reported to the delegate and later ones are only returned. Any other
// error fails just the operation that hit it.
func (e *Engine) check(op string, err error) error {
	if err == nil {
		return nil
	}
	if !store.IsFatal(err) {
		e.logger.Warn("history operation failed", "op", op, "error", err)
		return &OpError{Op: op, Err: err}
	}
	if !e.failed {
		e.failed = true
		code := store.StatusCode(err)
		if code < 0 {
			code = 0
		}
		e.logger.Error("history store failed",
			"op", op,
			"code", code,
			"corrupt", store.IsCorruption(err),
			"error", err,
		)
		e.delegate.ProfileError(code, err.Error())
	}
	return &OpError{Op: op, Err: err}
}

// emit passes committed events to the delegate.
func (e *Engine) emit(events []history.Event) {
	for _, ev := range events {
		if v, ok := ev.(history.URLVisited); ok {
			metrics.VisitsRecorded.WithLabelValues(v.Visit.Source.String()).Inc()
		}
		e.delegate.Event(ev)
	}
}
