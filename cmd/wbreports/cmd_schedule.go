package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"wbreports/internal/config"
	"wbreports/internal/infrastructure"
	"wbreports/internal/status"
)

var scheduleFlags struct {
	spec   string
	listen string
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the report session on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := cron.ParseStandard(scheduleFlags.spec); err != nil {
				return fmt.Errorf("invalid cron spec %q: %w", scheduleFlags.spec, err)
			}
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			logger := infrastructure.WithComponent(a.logger, "schedule")
			c := cron.New(
				cron.WithLogger(cronLogger{logger: logger}),
				cron.WithChain(cron.Recover(cronLogger{logger: logger}), cron.SkipIfStillRunning(cronLogger{logger: logger})),
			)
			tracker := status.NewTracker()
			_, err = c.AddFunc(scheduleFlags.spec, func() {
				tracker.Begin()
				date := config.Yesterday(time.Now())
				summary, err := a.runSession(ctx, date)
				tracker.Finish(summary, err)
				if summary != nil && len(summary.Outcomes) > 0 {
					summary.Render(cmd.OutOrStdout())
				}
				if err == nil {
					err = summary.Err()
				}
				if err != nil {
					logger.Error("Scheduled run failed", slog.String("error", err.Error()))
				}
			})
			if err != nil {
				return err
			}

			var serveErr chan error
			if scheduleFlags.listen != "" {
				srv := status.NewServer(scheduleFlags.listen, status.NewRouter(tracker, a.telemetry.Registry, logger), logger)
				serveErr = make(chan error, 1)
				go func() { serveErr <- srv.ListenAndServe(ctx) }()
			}

			c.Start()
			logger.Info("Scheduler started", slog.String("spec", scheduleFlags.spec))
			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil {
					<-c.Stop().Done()
					return fmt.Errorf("status server: %w", err)
				}
			}

			logger.Info("Stopping scheduler")
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&scheduleFlags.spec, "cron", "0 7 * * *", "standard 5-field cron spec")
	cmd.Flags().StringVar(&scheduleFlags.listen, "listen", "", "serve /health, /runs/last and /metrics on this address, e.g. :9090")
	return cmd
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{slog.String("error", err.Error())}, keysAndValues...)...)
}
