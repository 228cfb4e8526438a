package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/histcore/internal/service"
)

type statusView struct {
	Database   string `json:"database"`
	Failed     bool   `json:"failed"`
	QueueDepth int    `json:"queue_depth"`
	CachedURLs int    `json:"cached_urls"`
	Retention  string `json:"retention"`
	CacheGUID  string `json:"cache_guid"`
}

func (v statusView) String() string {
	state := "ok"
	if v.Failed {
		state = "failed"
	}
	return fmt.Sprintf("database:    %s\nstate:       %s\nqueue:       %d\ncached urls: %d\nretention:   %s\ncache guid:  %s",
		v.Database, state, v.QueueDepth, v.CachedURLs, v.Retention, v.CacheGUID)
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show database and engine status",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(ctx context.Context, s *session) error {
				st, err := await(ctx, func(cb func(service.Status, error)) *service.Ticket {
					return s.svc.Status(cb)
				})
				if err != nil {
					return err
				}

				db := rootOpts.Database
				if db == "" {
					if db, err = s.cfg.DatabasePath(); err != nil {
						return err
					}
				}
				return out.Success(statusView{
					Database:   db,
					Failed:     st.Failed,
					QueueDepth: st.QueueDepth,
					CachedURLs: s.svc.Cache().Len(),
					Retention:  s.cfg.RetentionWindow().String(),
					CacheGUID:  s.cfg.Sync.CacheGUID,
				})
			})
		},
	}
}
