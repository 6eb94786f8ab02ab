package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ETFRotation/internal/notifier"
	"ETFRotation/internal/pipeline"
	"ETFRotation/internal/scheduler"
	"ETFRotation/internal/server"
)

func newRunCmd() *cobra.Command {
	var notify bool
	var chartPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the backtest and live signal once and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.pipeline.Run(cmd.Context(), pipeline.RunOptions{Notify: notify, Chart: chartPath != ""})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out.Report)

			if chartPath != "" {
				if out.Chart == nil {
					return fmt.Errorf("equity chart could not be rendered")
				}
				if err := os.WriteFile(chartPath, out.Chart, 0o644); err != nil {
					return fmt.Errorf("write chart: %w", err)
				}
				log.Info().Str("path", chartPath).Msg("equity chart written")
			}
			if out.DeliveryErr != nil {
				log.Warn().Err(out.DeliveryErr).Msg("report was not delivered")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "deliver the report to the configured webhooks")
	cmd.Flags().StringVar(&chartPath, "chart", "", "write the equity curve PNG to this path")
	return cmd
}

func newSignalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signal",
		Short: "Print today's recommended holding",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.pipeline.Run(cmd.Context(), pipeline.RunOptions{})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), notifier.FormatSignal(out.Signal, cfg.Strategy.RegimePeriod))
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := newRecorder(cfg)
			if err != nil {
				return err
			}
			defer rec.Close()

			runs, err := rec.RecentRuns(limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), notifier.FormatHistory(runs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to list")
	return cmd
}

func newServeCmd() *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run on the cron schedule, answer chat commands and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched := scheduler.NewScheduler(ctx, a.pipeline)
			if err := sched.Register(cfg.Schedule.Cron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			if a.telegram != nil {
				go a.telegram.StartPolling(ctx, sched.HandleCommand)
				log.Info().Msg("telegram polling started")
			}

			if runOnStart || os.Getenv("RUN_ON_START") == "true" {
				log.Info().Msg("run on start enabled, executing now")
				go func() {
					if _, err := sched.RunNow(ctx, pipeline.RunOptions{Notify: true}); err != nil {
						log.Error().Err(err).Msg("startup run failed")
					}
				}()
			}

			srv := server.New(cfg.Server.Addr, sched, a.metrics.Handler())
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			log.Info().Str("cron", cfg.Schedule.Cron).Msg("rotator is running, press Ctrl+C to stop")
			select {
			case <-ctx.Done():
				log.Info().Msg("shutdown signal received, stopping")
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "execute one notifying run immediately")
	return cmd
}
