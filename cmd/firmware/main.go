//go:build tinygo && rp2040

// Command firmware runs the tester loop on the RP2040 board, reporting to
// the USB serial console.
package main

import (
	"context"
	"log"
	"machine"
	"time"

	"github.com/mscrnt/project_dram/internal/board/rp2040"
	"github.com/mscrnt/project_dram/internal/version"
	"github.com/mscrnt/project_dram/pkg/dram"
	"github.com/mscrnt/project_dram/pkg/tester"
	"github.com/mscrnt/project_dram/pkg/timing"
)

var (
	// Build variables set by ldflags
	buildVersion string
	buildCommit  string
)

func main() {
	board := rp2040.Setup()
	serial := machine.Serial
	logger := log.New(serial, "", 0)
	logger.Println(version.New(buildVersion, buildCommit, "").Banner())

	hz := rp2040.ClockHz()
	profile := timing.Grade150.Profile(hz)
	ctrl, err := dram.New(board.Pins, board.Addr, board.Exec, dram.Config{
		ClockHz:          hz,
		Profile:          profile,
		TransceiverDelay: timing.TransceiverDelay(timing.SN74HCTPropagationNs, hz),
		Pattern:          dram.DefaultPattern,
	}, logger)
	if err != nil {
		fatal(logger, err)
	}
	logger.Printf("%d Hz, %s", hz, profile)

	session := tester.NewSession(ctrl, tester.NewConsole(serial), board.LED, tester.Options{}, logger)
	if _, err := session.Run(context.Background()); err != nil {
		fatal(logger, err)
	}
}

// fatal keeps the error on the console; there is nowhere to exit to.
func fatal(logger *log.Logger, err error) {
	for {
		logger.Printf("halted: %v", err)
		machine.LED.High()
		time.Sleep(250 * time.Millisecond)
		machine.LED.Low()
		time.Sleep(750 * time.Millisecond)
	}
}
