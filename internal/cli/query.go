package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/service"
)

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "lookup <url>",
		Short:         "Show a URL row, its visits and whether autocomplete holds it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				if err := barrier(ctx, s.svc); err != nil {
					return err
				}
				view, err := lookup(ctx, s.svc, args[0])
				if err != nil {
					return err
				}
				if !view.Found {
					return out.Fail(ExitFailure, "E_NOT_FOUND", "no history for "+args[0])
				}
				return out.Success(view)
			})
		},
	}
}

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Begin       string
	End         string
	MaxCount    int
	Duplicates  string
	OldestFirst bool
	HostOnly    bool
}

var duplicatePolicies = map[string]history.DuplicatePolicy{
	"remove":  history.RemoveAllDuplicates,
	"per-day": history.RemoveDuplicatesPerDay,
	"keep":    history.KeepAllDuplicates,
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "List history, newest first",
		Long: `List visible history visits matching optional text.

Text matches every word against titles and URLs. Pages are bounded by
--max; pass the printed continuation time as --end to read the next page.

Examples:
  histcore query
  histcore query golang --max 20
  histcore query example.com --host-only --duplicates keep`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			return runQuery(cmd, opts, text)
		},
	}

	cmd.Flags().StringVar(&opts.Begin, "begin", "", "earliest visit time (RFC 3339)")
	cmd.Flags().StringVar(&opts.End, "end", "", "visits before this time (RFC 3339)")
	cmd.Flags().IntVar(&opts.MaxCount, "max", 100, "page size (0 for all)")
	cmd.Flags().StringVar(&opts.Duplicates, "duplicates", "remove", "duplicate handling (remove|per-day|keep)")
	cmd.Flags().BoolVar(&opts.OldestFirst, "oldest-first", false, "list oldest visits first")
	cmd.Flags().BoolVar(&opts.HostOnly, "host-only", false, "treat text as a host to match exactly")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions, text string) error {
	policy, ok := duplicatePolicies[opts.Duplicates]
	if !ok {
		return NewExitError(ExitCommandError, "invalid --duplicates: must be remove, per-day or keep")
	}
	begin, err := parseTime("begin", opts.Begin, time.Time{})
	if err != nil {
		return err
	}
	end, err := parseTime("end", opts.End, time.Time{})
	if err != nil {
		return err
	}

	qopts := history.QueryOptions{
		BeginTime:       begin,
		EndTime:         end,
		MaxCount:        opts.MaxCount,
		DuplicatePolicy: policy,
		HostOnly:        opts.HostOnly,
		Location:        time.Local,
	}
	if opts.OldestFirst {
		qopts.VisitOrder = history.OldestFirst
	}

	out := newFormatter(cmd, opts.RootOptions)
	return withSession(cmd.Context(), opts.RootOptions, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
		res, err := await(ctx, func(cb func(history.QueryResults, error)) *service.Ticket {
			return s.svc.QueryHistory(text, qopts, cb)
		})
		if err != nil {
			return err
		}
		return out.Success(newQueryView(res))
	})
}

// NewMostVisitedCommand creates the most-visited command.
func NewMostVisitedCommand(rootOpts *RootOptions) *cobra.Command {
	var count, days int

	cmd := &cobra.Command{
		Use:           "most-visited",
		Short:         "Rank URLs by recent visible visits",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				urls, err := await(ctx, func(cb func([]history.MostVisitedURL, error)) *service.Ticket {
					return s.svc.QueryMostVisited(count, days, cb)
				})
				if err != nil {
					return err
				}
				return out.Success(newRankedList(urls))
			})
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "number of URLs")
	cmd.Flags().IntVar(&days, "days", 90, "days back to count visits")
	return cmd
}

// NewRedirectsCommand creates the redirects command.
func NewRedirectsCommand(rootOpts *RootOptions) *cobra.Command {
	var to bool

	cmd := &cobra.Command{
		Use:   "redirects <url>",
		Short: "Show the redirect chain of the latest visit to a URL",
		Long: `Show where the latest visit to a URL redirected to, or with --to the
URLs that redirected to it, nearest first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				chain, err := await(ctx, func(cb func(history.RedirectList, error)) *service.Ticket {
					if to {
						return s.svc.QueryRedirectsTo(args[0], cb)
					}
					return s.svc.QueryRedirectsFrom(args[0], cb)
				})
				if err != nil {
					return err
				}
				return out.Success(chainView(chain))
			})
		},
	}

	cmd.Flags().BoolVar(&to, "to", false, "list the URLs that redirected to url")
	return cmd
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "complete <prefix>",
		Short:         "Suggest typed URLs and search terms from the autocomplete cache",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				if err := barrier(ctx, s.svc); err != nil {
					return err
				}
				n := limit
				if n <= 0 {
					n = s.cfg.Cache.PrefixResults
				}

				view := completionView{URLs: []urlView{}, Terms: []string{}}
				for _, row := range s.svc.Cache().TypedPrefix(args[0], n) {
					view.URLs = append(view.URLs, newURLView(row))
				}
				for _, term := range s.svc.Cache().SearchTerms(args[0], n) {
					view.Terms = append(view.Terms, term.Term)
				}
				return out.Success(view)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum suggestions of each kind (default from config)")
	return cmd
}

// NewClustersCommand creates the clusters command.
func NewClustersCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		count int
		hours int
	)

	cmd := &cobra.Command{
		Use:           "clusters",
		Short:         "List the most recent visit clusters",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			now := time.Now()
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				clusters, err := await(ctx, func(cb func([]history.Cluster, error)) *service.Ticket {
					return s.svc.MostRecentClusters(now.Add(-time.Duration(hours)*time.Hour), now.Add(time.Minute), count, true, cb)
				})
				if err != nil {
					return err
				}
				return out.Success(newClusterList(clusters))
			})
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "maximum clusters")
	cmd.Flags().IntVar(&hours, "hours", 24*7, "look back this many hours")
	return cmd
}
