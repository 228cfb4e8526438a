package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/service"
)

// parseTime reads an RFC 3339 flag value. Empty yields fallback.
func parseTime(flag, value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --%s", flag), err)
	}
	return t, nil
}

// lookup reads one URL row, its visits and its cache membership.
func lookup(ctx context.Context, svc *service.Service, url string) (lookupView, error) {
	res, err := await(ctx, func(cb func(history.QueryURLResult, error)) *service.Ticket {
		return svc.QueryURL(url, true, cb)
	})
	if err != nil {
		return lookupView{}, err
	}
	view := lookupView{Found: res.Found, Visits: make([]visitView, 0, len(res.Visits))}
	if res.Found {
		u := newURLView(res.Row)
		view.URL = &u
		_, view.Cached = svc.Cache().Lookup(res.Row.URL)
	}
	for _, v := range res.Visits {
		view.Visits = append(view.Visits, newVisitView(v))
	}
	return view, nil
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Transition string
	Redirects  []string
	Referrer   string
	Title      string
	Time       string
	Hidden     bool
	HTTPStatus int
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Record a navigation",
		Long: `Record a navigation to a URL and print the resulting row.

Redirect chains are given in order with repeated --redirect flags, ending
with the final URL.

Examples:
  histcore add https://example.com/ --transition typed
  histcore add https://example.com/ --transition typed \
    --redirect http://example.com/ --redirect https://example.com/`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Transition, "transition", "link", "transition, e.g. typed or link|client_redirect")
	cmd.Flags().StringArrayVar(&opts.Redirects, "redirect", nil, "redirect chain hop (repeatable)")
	cmd.Flags().StringVar(&opts.Referrer, "referrer", "", "referring URL")
	cmd.Flags().StringVar(&opts.Title, "title", "", "page title")
	cmd.Flags().StringVar(&opts.Time, "time", "", "visit time (RFC 3339, default now)")
	cmd.Flags().BoolVar(&opts.Hidden, "hidden", false, "record the URL as hidden")
	cmd.Flags().IntVar(&opts.HTTPStatus, "status", 0, "HTTP response status")

	return cmd
}

func runAdd(cmd *cobra.Command, opts *AddOptions, url string) error {
	transition, err := history.ParseTransition(opts.Transition)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --transition", err)
	}
	at, err := parseTime("time", opts.Time, time.Now())
	if err != nil {
		return err
	}

	out := newFormatter(cmd, opts.RootOptions)
	return withSession(cmd.Context(), opts.RootOptions, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
		s.svc.AddPage(history.AddPageArgs{
			URL:        url,
			Time:       at,
			Referrer:   opts.Referrer,
			Redirects:  history.RedirectList(opts.Redirects),
			Transition: transition,
			Hidden:     opts.Hidden,
			Source:     history.SourceBrowsed,
			Title:      opts.Title,
			HTTPStatus: opts.HTTPStatus,
		})
		out.VerboseLog("recorded %s as %s", url, transition)

		view, err := lookup(ctx, s.svc, url)
		if err != nil {
			return err
		}
		if !view.Found {
			return out.Success(messageView{Message: "not recorded (refused by capture policy)"})
		}
		return out.Success(view)
	})
}

// NewTitleCommand creates the title command.
func NewTitleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "title <url> <title>",
		Short: "Set the title of a URL and the redirects that reached it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				s.svc.SetTitle(args[0], args[1])
				view, err := lookup(ctx, s.svc, args[0])
				if err != nil {
					return err
				}
				return out.Success(view)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// NewKeywordCommand creates the keyword command with set and delete
// subcommands.
func NewKeywordCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyword",
		Short: "Manage keyword search terms",
	}

	var keywordID int64
	set := &cobra.Command{
		Use:           "set <url> <term>",
		Short:         "Associate a search term with a URL",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keywordID <= 0 {
				return NewExitError(ExitCommandError, "--keyword must be positive")
			}
			out := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				s.svc.SetKeywordSearchTerm(args[0], history.KeywordID(keywordID), args[1])
				if err := barrier(ctx, s.svc); err != nil {
					return err
				}
				return out.Success(messageView{Message: fmt.Sprintf("search term %q set for %s", args[1], args[0])})
			})
		},
	}
	set.Flags().Int64Var(&keywordID, "keyword", 1, "search engine keyword id")

	del := &cobra.Command{
		Use:           "delete <url>",
		Short:         "Remove the search terms of a URL",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				s.svc.DeleteKeywordSearchTerm(args[0])
				if err := barrier(ctx, s.svc); err != nil {
					return err
				}
				return out.Success(messageView{Message: "search terms removed for " + args[0]})
			})
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}
