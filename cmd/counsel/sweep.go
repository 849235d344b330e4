package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/tbourn/go-counsel-backend/internal/http"
	"github.com/tbourn/go-counsel-backend/internal/jobs"
	"github.com/tbourn/go-counsel-backend/internal/notify"
)

func newSweepCmd(root *rootCommander) *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale requests and retry matching once",
		Long: `Runs a single expiry sweep and exits. Useful from cron when the API
runs with --sweeper=false. Counselor notifications go through Redis when
REDIS_ADDR is set and are dropped otherwise.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := root.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			var b httpapi.Backends
			if root.cfg.Redis.Addr != "" {
				rn, err := notify.NewRedisNotifier(ctx, root.cfg.Redis, log.Logger)
				if err != nil {
					return err
				}
				defer rn.Close()
				b.Notifier = rn
			}

			svc := httpapi.NewServices(db, b, root.cfg)
			sw := &jobs.Sweeper{Requests: svc.Requests, Matcher: svc.Matching, Batch: batch, Log: log.Logger}
			res, err := sw.RunOnce(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("expired", res.Expired).Int("proposed", res.Proposed).Msg("sweep done")
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "Max waiting consultations to re-match (0 = sweeper default)")
	return cmd
}
