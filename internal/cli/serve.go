package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/metrics"
	"github.com/roach88/histcore/internal/mostvisited"
	"github.com/roach88/histcore/internal/service"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	MetricsAddr string
	Refresh     time.Duration
	Count       int
	Days        int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the profile open for retention sweeps and metrics",
		Long: `Hold the history profile open until interrupted.

The retention sweep runs at start and then every retention.expire_interval_hours.
The most-visited ranking is refreshed every --refresh and changes are logged.
With --metrics-addr, Prometheus metrics are served on /metrics.

Examples:
  histcore serve
  histcore serve --metrics-addr 127.0.0.1:9464 --refresh 30s`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "listen address for /metrics (empty disables)")
	cmd.Flags().DurationVar(&opts.Refresh, "refresh", time.Minute, "most-visited refresh interval")
	cmd.Flags().IntVar(&opts.Count, "count", 10, "most-visited ranking size")
	cmd.Flags().IntVar(&opts.Days, "days", 90, "days back for the most-visited ranking")

	return cmd
}

// rankingSource answers most-visited queries through the service.
type rankingSource struct {
	svc *service.Service
}

func (r rankingSource) QueryMostVisited(ctx context.Context, count, daysBack int) ([]history.MostVisitedURL, error) {
	return await(ctx, func(cb func([]history.MostVisitedURL, error)) *service.Ticket {
		return r.svc.QueryMostVisited(count, daysBack, cb)
	})
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	if opts.Refresh <= 0 {
		return NewExitError(ExitCommandError, "--refresh must be positive")
	}

	stop := cmd.Context()
	// The session outlives the stop signal so Close drains the owner
	// sequence before RunOwner returns.
	return withSession(context.WithoutCancel(stop), opts.RootOptions, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
		g, gctx := errgroup.WithContext(stop)

		if opts.MetricsAddr != "" {
			ln, err := net.Listen("tcp", opts.MetricsAddr)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to listen for metrics", err)
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			s.logger.Info("serving metrics", "addr", ln.Addr().String())
			g.Go(func() error {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		}

		g.Go(func() error {
			return sweepLoop(gctx, s)
		})

		tracker := mostvisited.NewTracker(rankingSource{svc: s.svc}, opts.Count, opts.Days)
		g.Go(func() error {
			return rankingLoop(gctx, s, tracker, opts.Refresh)
		})

		if err := g.Wait(); err != nil && stop.Err() == nil {
			return err
		}
		s.logger.Info("serve stopping")
		return nil
	})
}

// sweepLoop runs the retention sweep now and on every expire interval.
func sweepLoop(ctx context.Context, s *session) error {
	if s.cfg.RetentionWindow() <= 0 {
		s.logger.Info("retention disabled")
		return nil
	}

	ticker := time.NewTicker(s.cfg.ExpireInterval())
	defer ticker.Stop()
	for {
		s.svc.ExpireRetention()
		if err := barrier(ctx, s.svc); err != nil {
			return err
		}
		s.logger.Debug("retention sweep done", "window", s.cfg.RetentionWindow())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// rankingLoop refreshes the most-visited ranking and logs its changes.
func rankingLoop(ctx context.Context, s *session, tracker *mostvisited.Tracker, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		delta, err := tracker.Refresh(ctx)
		if err != nil {
			return err
		}
		if !delta.Empty() {
			metrics.MostVisitedChanges.WithLabelValues("added").Add(float64(len(delta.Added)))
			metrics.MostVisitedChanges.WithLabelValues("deleted").Add(float64(len(delta.Deleted)))
			metrics.MostVisitedChanges.WithLabelValues("moved").Add(float64(len(delta.Moved)))
			s.logger.Info("most visited changed",
				"added", len(delta.Added), "deleted", len(delta.Deleted), "moved", len(delta.Moved))
			for _, r := range delta.Added {
				s.logger.Debug("most visited entry", "rank", r.Rank, "url", r.URL.URL)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
