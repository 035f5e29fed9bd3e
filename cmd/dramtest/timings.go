package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mscrnt/project_dram/pkg/delay"
	"github.com/mscrnt/project_dram/pkg/timing"
)

func timingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timings",
		Short: "Show the derived wait times for every grade and clock",
		Long: `Print the busy-wait time left after subtracting one cycle of pin
overhead from each datasheet figure, and the loop/nop plan that
realizes it.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "GRADE\tCLOCK\tNS/CYCLE\ttRAS\ttCAS\ttRCD\ttRP\ttCP\tREST\tCAS PLAN")

			for _, g := range timing.Grades() {
				for _, c := range timing.Clocks() {
					p := g.Profile(c.Hz)
					plan := delay.Compute(p.ColStrobePulse, c.Hz)
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d loops + %d nops\n",
						g.Name, c.Name, delay.NsPerCycle(c.Hz),
						p.RowStrobePulse, p.ColStrobePulse, p.StrobeToStrobe, p.RowPrecharge, p.ColPrecharge,
						p.RowStrobeRest(), plan.Loops, plan.Nops)
				}
			}
			return tw.Flush()
		},
	}
}
