package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mscrnt/project_dram/internal/config"
	"github.com/mscrnt/project_dram/pkg/dram"
	"github.com/mscrnt/project_dram/pkg/report"
	"github.com/mscrnt/project_dram/pkg/sim"
	"github.com/mscrnt/project_dram/pkg/tester"
	"github.com/mscrnt/project_dram/pkg/timing"
)

// socketFlags override the loaded configuration
type socketFlags struct {
	clock string
	grade string
	chip  string
	stuck []string
}

func (f *socketFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.clock, "clock", "", "CPU clock preset (e.g. 125MHz)")
	cmd.Flags().StringVar(&f.grade, "grade", "", "Chip speed grade (e.g. 150ns)")
	cmd.Flags().StringVar(&f.chip, "chip", "", "Simulated chip: 4164, 41256 or none")
	cmd.Flags().StringArrayVar(&f.stuck, "stuck", nil, "Stuck cell as row,col,value (repeatable)")
}

// loadConfig reads --config when given and applies the command line
// overrides on top.
func loadConfig(f *socketFlags) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, err
		}
	}

	if f.clock != "" {
		cfg.Clock = f.clock
	}
	if f.grade != "" {
		cfg.Grade = f.grade
	}
	if f.chip != "" {
		cfg.Sim.Chip = f.chip
	}
	for _, s := range f.stuck {
		cell, err := parseCell(s)
		if err != nil {
			return cfg, err
		}
		cfg.Sim.Stuck = append(cfg.Sim.Stuck, cell)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parseCell parses "row,col,value" where value is 0 or 1.
func parseCell(s string) (config.Cell, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return config.Cell{}, fmt.Errorf("stuck cell %q: expected row,col,value", s)
	}

	var nums [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 0, 32)
		if err != nil {
			return config.Cell{}, fmt.Errorf("stuck cell %q: %w", s, err)
		}
		nums[i] = n
	}
	if nums[2] > 1 {
		return config.Cell{}, fmt.Errorf("stuck cell %q: value must be 0 or 1", s)
	}
	return config.Cell{Row: uint32(nums[0]), Col: uint32(nums[1]), Value: nums[2] == 1}, nil
}

// logOutput receives every component logger
var (
	logOutput io.Writer = os.Stderr
	logFile   *os.File
)

func openLog(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f
	logOutput = f
	return nil
}

func closeLog() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
		logOutput = os.Stderr
	}
}

func newLogger(prefix string) *log.Logger {
	return log.New(logOutput, prefix, log.LstdFlags)
}

func controllerLogger() *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return newLogger("[dram] ")
}

// rig is a simulated board with a controller attached.
type rig struct {
	board *sim.Board
	ctrl  *dram.Controller[*sim.Output, *sim.Input]
	setup report.Setup
}

func newRig(cfg config.Config) (*rig, error) {
	dc, grade, err := cfg.Controller()
	if err != nil {
		return nil, err
	}
	lines, err := cfg.SimLines()
	if err != nil {
		return nil, err
	}

	board := sim.NewBoard(dc.ClockHz)
	if lines > 0 {
		board.Insert(newChip(cfg, lines, grade))
	}

	ctrl, err := dram.New(dram.Pins[*sim.Output, *sim.Input]{
		WE:   board.WE,
		CAS:  board.CAS,
		RAS:  board.RAS,
		DIN:  board.DIN,
		DOUT: board.DOUT,
	}, board.Addr, board.Clock(), dc, controllerLogger())
	if err != nil {
		return nil, err
	}

	return &rig{
		board: board,
		ctrl:  ctrl,
		setup: report.Setup{
			Clock:   cfg.Clock,
			Grade:   cfg.Grade,
			Profile: dc.Profile.String(),
			Pattern: dc.Pattern,
			Socket:  "simulated " + cfg.Sim.Chip,
		},
	}, nil
}

func newChip(cfg config.Config, lines uint8, grade timing.Grade) *sim.Chip {
	chip := sim.NewChip(lines)
	if cfg.Sim.CheckTiming {
		chip.CheckTiming(grade)
	}
	for _, c := range cfg.Sim.Stuck {
		chip.Stick(c.Row, c.Col, c.Value)
	}
	return chip
}

// writeReport renders a session report in format to path, or stdout when
// path is empty.
func writeReport(format, path string, sum tester.Summary, setup report.Setup) error {
	if format == "none" {
		return nil
	}

	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		w = f
	}

	g := report.NewGenerator()
	data := g.Collect(sum, setup)
	switch format {
	case "text":
		return g.Text(w, data)
	case "html":
		return g.HTML(w, data)
	default:
		return fmt.Errorf("unknown report format: %s", format)
	}
}
