// Package service is the asynchronous facade over the history engine.
//
// ARCHITECTURE:
//
// Two sequences carry all work. The engine sequence runs on a goroutine the
// service owns and is the only place the engine and store are touched. The
// owner sequence belongs to the caller: it is drained by RunOwner or Pump,
// and it is where query callbacks, observers and the autocomplete cache run.
//
//	caller ──Post──▶ engine sequence ──events/results──▶ owner sequence
//
// Every facade call posts exactly one engine task. Events and results cross
// to the owner sequence as values; no engine state is shared.
package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/histcore/internal/cache"
	"github.com/roach88/histcore/internal/engine"
	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/metrics"
	"github.com/roach88/histcore/internal/sequence"
	"github.com/roach88/histcore/internal/store"
)

// ProfileErrorHandler is told, once, that the store failed.
type ProfileErrorHandler func(code int, diagnostics string)

// Service owns the engine, its store and both sequences.
type Service struct {
	store  *store.Store
	engine *engine.Engine
	cache  *cache.Cache

	engineSeq *sequence.Sequence
	owner     *sequence.Sequence

	ctx        context.Context
	cancel     context.CancelFunc
	engineDone chan struct{}

	obsMu     sync.Mutex
	observers []history.Observer

	onProfileError ProfileErrorHandler
	logger         *slog.Logger

	ownerRunning atomic.Bool
	closing      atomic.Bool
	closeOnce    sync.Once
}

// Option configures a Service.
type Option func(*Service, *[]engine.EngineOption)

// WithEngineOptions passes options through to the engine. A delegate set
// here is replaced by the service's own.
func WithEngineOptions(opts ...engine.EngineOption) Option {
	return func(_ *Service, eo *[]engine.EngineOption) {
		*eo = append(*eo, opts...)
	}
}

// WithProfileErrorHandler sets the handler told about a failed store. It
// runs on the owner sequence.
func WithProfileErrorHandler(h ProfileErrorHandler) Option {
	return func(s *Service, _ *[]engine.EngineOption) {
		s.onProfileError = h
	}
}

// WithLogger sets the logger of the service and the engine.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service, eo *[]engine.EngineOption) {
		if l != nil {
			s.logger = l
			*eo = append(*eo, engine.WithLogger(l))
		}
	}
}

// New starts a service over an open store. The service takes ownership of
// the store and closes it during Close. The autocomplete cache is loaded by
// the first engine task.
func New(st *store.Store, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		store:      st,
		engineSeq:  sequence.New("engine"),
		owner:      sequence.New("owner"),
		ctx:        ctx,
		cancel:     cancel,
		engineDone: make(chan struct{}),
		logger:     slog.Default(),
	}

	var engineOpts []engine.EngineOption
	for _, opt := range opts {
		opt(s, &engineOpts)
	}
	engineOpts = append(engineOpts, engine.WithDelegate(delegate{s: s}))

	s.engine = engine.New(st, engineOpts...)
	s.cache = cache.New(s.logger)

	go func() {
		defer close(s.engineDone)
		if err := s.engineSeq.Run(s.ctx); err != nil {
			s.logger.Warn("engine sequence stopped", "error", err)
		}
	}()

	s.reloadCache()
	return s
}

// delegate forwards engine notifications to the owner sequence.
type delegate struct{ s *Service }

func (d delegate) Event(ev history.Event) {
	d.s.owner.Post(func() { d.s.dispatch(ev) })
}

func (d delegate) ProfileError(code int, diagnostics string) {
	d.s.owner.Post(func() {
		if d.s.onProfileError != nil {
			d.s.onProfileError(code, diagnostics)
		}
	})
}

// dispatch delivers an event to the cache, then to observers in the order
// they were added. Runs on the owner sequence.
func (s *Service) dispatch(ev history.Event) {
	ev.Dispatch(s.cache)

	s.obsMu.Lock()
	observers := append([]history.Observer(nil), s.observers...)
	s.obsMu.Unlock()

	for _, o := range observers {
		ev.Dispatch(o)
	}
}

// snapshot is a cache.Loader over rows already read on the engine sequence.
type snapshot struct {
	rows  []history.URLRow
	terms []history.KeywordSearchTerm
}

func (sn snapshot) AutocompleteRows(context.Context) ([]history.URLRow, []history.KeywordSearchTerm, error) {
	return sn.rows, sn.terms, nil
}

func (s *Service) reloadCache() {
	s.post("reload_cache", func(ctx context.Context) error {
		rows, terms, err := s.engine.AutocompleteRows(ctx)
		if err != nil {
			return err
		}
		s.owner.Post(func() {
			if err := s.cache.Reload(s.ctx, snapshot{rows: rows, terms: terms}); err != nil {
				s.logger.Warn("autocomplete cache reload failed", "error", err)
			}
		})
		return nil
	})
}

// post queues one engine task. It returns false once the service is
// closing.
func (s *Service) post(op string, fn func(ctx context.Context) error) bool {
	if s.closing.Load() {
		s.logger.Debug("dropping task after close", "op", op)
		return false
	}
	ok := s.engineSeq.Post(func() {
		metrics.QueueDepth.Set(float64(s.engineSeq.Len()))
		start := time.Now()
		err := fn(s.ctx)
		metrics.ObserveTask(op, start, err)
	})
	metrics.QueueDepth.Set(float64(s.engineSeq.Len()))
	return ok
}

// query queues an engine read whose result is delivered to cb on the owner
// sequence. A canceled ticket skips the read if it has not started and
// always suppresses cb.
func query[T any](s *Service, op string, run func(ctx context.Context) (T, error), cb func(T, error)) *Ticket {
	t := &Ticket{}
	posted := s.post(op, func(ctx context.Context) error {
		if t.Canceled() {
			return nil
		}
		res, err := run(ctx)
		s.owner.Post(func() {
			if cb != nil && !t.Canceled() {
				cb(res, err)
			}
		})
		return err
	})
	if !posted {
		t.Cancel()
	}
	return t
}

// Cache returns the autocomplete cache. Its reads are safe from any
// goroutine.
func (s *Service) Cache() *cache.Cache { return s.cache }

// AddObserver registers o for events. Observers run on the owner sequence.
func (s *Service) AddObserver(o history.Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// RemoveObserver unregisters o. Unknown observers are ignored.
func (s *Service) RemoveObserver(o history.Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for i, existing := range s.observers {
		if existing == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// RunOwner drains the owner sequence until the service is closed and every
// callback ran, or ctx is done.
func (s *Service) RunOwner(ctx context.Context) error {
	s.ownerRunning.Store(true)
	defer s.ownerRunning.Store(false)
	return s.owner.Run(ctx)
}

// Pump runs the owner tasks queued so far and returns how many ran. It is
// for callers that drive the owner sequence themselves.
func (s *Service) Pump() int {
	return s.owner.RunPending()
}

// Flush blocks until every task posted before it, and the callbacks those
// tasks queued, have run. With a RunOwner loop active Flush only waits and
// must not be called from an owner task. Without one Flush pumps the owner
// sequence itself, so it must be called from the owner goroutine.
func (s *Service) Flush() {
	done := make(chan struct{})
	ok := s.engineSeq.Post(func() {
		if !s.owner.Post(func() { close(done) }) {
			close(done)
		}
	})
	if !ok {
		s.Pump()
		return
	}

	if s.ownerRunning.Load() {
		select {
		case <-done:
		case <-s.engineDone:
		}
		return
	}

	for {
		s.Pump()
		select {
		case <-done:
			return
		case <-s.owner.Wait():
		case <-s.engineDone:
			s.Pump()
			return
		}
	}
}

// Close refuses further calls, drains the engine sequence, closes the
// store and then posts onDestroyed to the owner sequence. The owner
// sequence is closed after onDestroyed, which ends RunOwner once drained.
func (s *Service) Close(onDestroyed func()) {
	s.closeOnce.Do(func() {
		s.closing.Store(true)

		s.engineSeq.Post(func() {
			s.engine.Close()
			if err := s.store.Close(); err != nil {
				s.logger.Warn("closing history store", "error", err)
			}
		})
		s.engineSeq.Close()
		<-s.engineDone
		s.cancel()

		if onDestroyed != nil {
			s.owner.Post(onDestroyed)
		}
		s.owner.Close()
		s.logger.Info("history service closed")
	})
}
