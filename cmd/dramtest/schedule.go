package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mscrnt/project_dram/pkg/schedule"
	"github.com/mscrnt/project_dram/pkg/tester"
)

func scheduleCmd() *cobra.Command {
	var (
		socket    socketFlags
		name      string
		cronExpr  string
		maxJobs   int
		runs      int
		format    string
		reportDir string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Soak test the socket on a cron schedule",
		Long: `Run a batch of moving inversions passes at every cron tick and
write a report per batch.

Cron expression format:
  ┌───────────── minute (0 - 59)
  │ ┌───────────── hour (0 - 23)
  │ │ ┌───────────── day of month (1 - 31)
  │ │ │ ┌───────────── month (1 - 12)
  │ │ │ │ ┌───────────── day of week (0 - 6) (Sunday to Saturday)
  │ │ │ │ │
  * * * * *

Examples:
  # Ten passes every 15 minutes until interrupted
  dramtest schedule --cron "*/15 * * * *" --runs 10

  # Nightly batch, HTML reports into ./reports, stop after a week
  dramtest schedule --cron "0 2 * * *" --jobs 7 --format html --dir reports`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(&socket)
			if err != nil {
				return err
			}
			r, err := newRig(cfg)
			if err != nil {
				return err
			}
			if reportDir != "" {
				if err := os.MkdirAll(reportDir, 0o755); err != nil {
					return fmt.Errorf("failed to create report directory: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := newLogger("[schedule] ")
			session := tester.NewSession(r.ctrl, tester.NewConsole(os.Stdout), r.board.LED, tester.Options{
				MaxRuns:        runs,
				DetectAttempts: 1,
			}, newLogger("[tester] "))

			job := func(ctx context.Context) error {
				sum, err := session.Run(ctx)
				if err != nil {
					return err
				}
				logger.Printf("Batch finished: %d runs, %d passed, %d failed", sum.Runs, sum.Passes, sum.Failures)

				path := ""
				if reportDir != "" {
					path = filepath.Join(reportDir, reportName(sum.Start, format))
				}
				return writeReport(format, path, sum, r.setup)
			}

			jobs, err := schedule.NewRunner(logger).Run(ctx, schedule.Schedule{
				Name:     name,
				CronExpr: cronExpr,
				MaxRuns:  maxJobs,
			}, job)
			logger.Printf("Ran %d batches", jobs)
			return err
		},
	}

	socket.register(cmd)
	cmd.Flags().StringVar(&name, "name", "soak", "Schedule name used in logs")
	cmd.Flags().StringVar(&cronExpr, "cron", "*/15 * * * *", "Cron expression")
	cmd.Flags().IntVar(&maxJobs, "jobs", 0, "Stop after this many batches (0 = until interrupted)")
	cmd.Flags().IntVarP(&runs, "runs", "n", 10, "Moving inversions runs per batch")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Report format: text, html or none")
	cmd.Flags().StringVar(&reportDir, "dir", "", "Write one report file per batch into this directory")

	return cmd
}

func reportName(start time.Time, format string) string {
	ext := "txt"
	if format == "html" {
		ext = "html"
	}
	return fmt.Sprintf("dram-%s.%s", start.Format("20060102-150405"), ext)
}
