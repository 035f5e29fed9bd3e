package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mscrnt/project_dram/pkg/tester"
)

func runCmd() *cobra.Command {
	var (
		socket   socketFlags
		runs     int
		attempts int
		format   string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Test the chip in the simulated socket",
		Long: `Detect the chip and run moving inversions on it until --runs is
reached or the command is interrupted.

Examples:
  # Ten passes over a healthy 41256 at the default clock
  dramtest run --runs 10

  # A 4164 with a cell stuck low, reported as HTML
  dramtest run --chip 4164 --stuck 5,5,0 --runs 1 --format html -o report.html

  # Fastest grade at the fastest clock
  dramtest run --clock 300MHz --grade 80ns --runs 3`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(&socket)
			if err != nil {
				return err
			}
			r, err := newRig(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session := tester.NewSession(r.ctrl, tester.NewConsole(os.Stdout), r.board.LED, tester.Options{
				MaxRuns:        runs,
				DetectAttempts: attempts,
			}, newLogger("[tester] "))

			sum, runErr := session.Run(ctx)
			if err := writeReport(format, output, sum, r.setup); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if sum.Failures > 0 {
				return fmt.Errorf("%d of %d runs failed", sum.Failures, sum.Runs)
			}
			return nil
		},
	}

	socket.register(cmd)
	cmd.Flags().IntVarP(&runs, "runs", "n", 1, "Moving inversions runs (0 = until interrupted)")
	cmd.Flags().IntVar(&attempts, "attempts", 3, "Detection attempts before giving up (0 = forever)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Report format: text, html or none")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Report file (default stdout)")

	return cmd
}
