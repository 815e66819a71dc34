package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/obras/internal/scheduler"
	"github.com/hazyhaar/obras/obras"
	"github.com/hazyhaar/obras/watch"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync the remote workbook on schedule and re-import the watched file",
	Long: `daemon runs until interrupted. When sync.schedule is set and Dropbox
credentials are configured, the remote workbook is synced on that cron spec
(and once at startup). When watch.path is set, the local workbook is
re-imported whenever it changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()
		return runDaemon(cmd.Context(), svc)
	},
}

func runDaemon(ctx context.Context, svc *obras.Service) error {
	g, ctx := errgroup.WithContext(ctx)
	jobs := 0

	if cfg.Sync.Schedule != "" && cfg.DropboxClientConfig().Configured() {
		sched := scheduler.New(logger)
		sync := func(ctx context.Context) error {
			_, err := svc.Sync(ctx, false)
			return err
		}
		if err := sched.Add("dropbox-sync", cfg.Sync.Schedule, sync); err != nil {
			return err
		}
		g.Go(func() error {
			if err := sync(ctx); err != nil {
				logger.Warn("startup sync failed", "error", err)
			}
			sched.Run(ctx)
			return nil
		})
		jobs++
	}

	if cfg.Watch.Path != "" {
		w := watch.New(watch.FileDetector(cfg.Watch.Path), watch.Options{
			Interval:    cfg.Watch.Interval,
			Debounce:    cfg.Watch.Debounce,
			FireOnStart: true,
			Permanent:   obras.Rejected,
			Logger:      logger,
		})
		g.Go(func() error {
			w.OnChange(ctx, func(ctx context.Context) error {
				_, err := svc.ImportFile(ctx, cfg.Watch.Path, obras.SourceWatch)
				return err
			})
			logger.Info("watcher stats", "stats", w.Stats())
			return nil
		})
		jobs++
	}

	if jobs == 0 {
		return errors.New("nothing to run: set sync.schedule with Dropbox credentials, or watch.path")
	}
	logger.Info("daemon started", "jobs", jobs)
	return g.Wait()
}
