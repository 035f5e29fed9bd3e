package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mscrnt/project_dram/internal/version"
)

var (
	// Build variables set by ldflags
	buildVersion string
	buildCommit  string
	buildTime    string

	configPath string
	logPath    string
	verbose    bool
)

func main() {
	info := version.New(buildVersion, buildCommit, buildTime)

	rootCmd := &cobra.Command{
		Use:   "dramtest",
		Short: "4164/41256 DRAM tester",
		Long: `dramtest drives the DRAM tester logic against a simulated socket.
It detects the chip, runs the moving inversions test and reports
failing cells exactly as the board firmware does.`,
		Version:       info.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return openLog(logPath)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			closeLog()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Append log output to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log controller activity")

	rootCmd.AddCommand(versionCmd(info))
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(timingsCmd())
	rootCmd.AddCommand(scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd(info version.Info) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(info.Detailed())
		},
	}
}
