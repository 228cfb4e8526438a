package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <url>...",
		Short:         "Delete URLs with all their visits",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				s.svc.DeleteURLs(args)
				if err := barrier(ctx, s.svc); err != nil {
					return err
				}
				return out.Success(messageView{Message: fmt.Sprintf("deleted %d url(s)", len(args))})
			})
		},
	}
}

// ExpireOptions holds flags for the expire command.
type ExpireOptions struct {
	*RootOptions
	Begin     string
	End       string
	URLs      []string
	All       bool
	Retention bool
	OlderThan string
}

// NewExpireCommand creates the expire command.
func NewExpireCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExpireOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Delete visits in a time range",
		Long: `Delete visits in [--begin, --end), optionally only those of the given
URLs. Bookmarked and pinned URLs keep their rows.

Examples:
  histcore expire --all
  histcore expire --begin 2026-01-01T00:00:00Z --end 2026-02-01T00:00:00Z
  histcore expire --url https://example.com/ --begin 2026-01-01T00:00:00Z
  histcore expire --retention
  histcore expire --older-than 2025-06-01T00:00:00Z`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpire(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Begin, "begin", "", "start of the range (RFC 3339)")
	cmd.Flags().StringVar(&opts.End, "end", "", "end of the range, exclusive (RFC 3339)")
	cmd.Flags().StringArrayVar(&opts.URLs, "url", nil, "restrict to this URL (repeatable)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "delete all history")
	cmd.Flags().BoolVar(&opts.Retention, "retention", false, "run the retention sweep from config")
	cmd.Flags().StringVar(&opts.OlderThan, "older-than", "", "automatic expiration of visits before this time (RFC 3339)")

	return cmd
}

func runExpire(cmd *cobra.Command, opts *ExpireOptions) error {
	ranged := opts.Begin != "" || opts.End != "" || len(opts.URLs) > 0
	modes := 0
	for _, on := range []bool{ranged, opts.All, opts.Retention, opts.OlderThan != ""} {
		if on {
			modes++
		}
	}
	if modes != 1 {
		return NewExitError(ExitCommandError, "give exactly one of a range (--begin/--end/--url), --all, --retention or --older-than")
	}

	begin, err := parseTime("begin", opts.Begin, time.Time{})
	if err != nil {
		return err
	}
	end, err := parseTime("end", opts.End, time.Time{})
	if err != nil {
		return err
	}
	cutoff, err := parseTime("older-than", opts.OlderThan, time.Time{})
	if err != nil {
		return err
	}
	if !end.IsZero() && end.Before(begin) {
		return NewExitError(ExitCommandError, "--end is before --begin")
	}

	out := newFormatter(cmd, opts.RootOptions)
	return withSession(cmd.Context(), opts.RootOptions, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
		var msg string
		switch {
		case opts.All:
			s.svc.ExpireBetween(nil, time.Time{}, time.Time{})
			msg = "all history deleted"
		case opts.Retention:
			s.svc.ExpireRetention()
			msg = fmt.Sprintf("visits older than %s expired", s.cfg.RetentionWindow())
		case !cutoff.IsZero():
			s.svc.ExpireOlderThan(cutoff)
			msg = "visits before " + cutoff.Format(time.RFC3339) + " expired"
		default:
			s.svc.ExpireBetween(opts.URLs, begin, end)
			msg = "visits in range deleted"
		}
		out.VerboseLog("%s", msg)
		if err := barrier(ctx, s.svc); err != nil {
			return err
		}
		return out.Success(messageView{Message: msg})
	})
}
