package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func detectCmd() *cobra.Command {
	var socket socketFlags

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Identify the chip in the simulated socket",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(&socket)
			if err != nil {
				return err
			}
			r, err := newRig(cfg)
			if err != nil {
				return err
			}

			if err := r.ctrl.Init(); err != nil {
				return fmt.Errorf("failed to initialize socket: %w", err)
			}
			kind, err := r.ctrl.ChipKind()
			if err != nil {
				return err
			}

			fmt.Printf("Chip: %s\n", kind)
			if kind.AddressLines() > 0 {
				fmt.Printf("Address lines: %d\n", kind.AddressLines())
				fmt.Printf("Cells: %d\n", kind.Cells())
			}
			return nil
		},
	}

	socket.register(cmd)
	return cmd
}
