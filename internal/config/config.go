// Package config loads the tester configuration from a TOML file.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/mscrnt/project_dram/pkg/dram"
	"github.com/mscrnt/project_dram/pkg/timing"
)

// Cell is a simulated stuck-at fault.
type Cell struct {
	Row   uint32 `toml:"row"`
	Col   uint32 `toml:"col"`
	Value bool   `toml:"value"`
}

// Sim configures the simulated socket used when no board is attached.
type Sim struct {
	Chip  string `toml:"chip"` // "4164", "41256" or "none"
	Stuck []Cell `toml:"stuck"`
	// CheckTiming drops accesses that violate the datasheet pulse widths.
	CheckTiming bool `toml:"check_timing"`
}

// Config contains the tester configuration
type Config struct {
	Clock string `toml:"clock"` // clock preset name, e.g. "125MHz"
	Grade string `toml:"grade"` // speed grade name, e.g. "150ns"

	AddressSettleNs uint32 `toml:"address_settle_ns"`
	// TransceiverNs is the propagation delay of the DOUT level shifter.
	TransceiverNs uint32 `toml:"transceiver_ns"`
	Pattern       uint32 `toml:"pattern"`

	Sim Sim `toml:"sim"`
}

// Default returns the configuration of the reference board
func Default() Config {
	return Config{
		Clock:         timing.Clock125.Name,
		Grade:         timing.Grade150.Name,
		TransceiverNs: timing.SN74HCTPropagationNs,
		Pattern:       dram.DefaultPattern,
		Sim: Sim{
			Chip:        "41256",
			CheckTiming: true,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("unknown config key %q in %s", undecoded[0].String(), path)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if _, err := timing.LookupClock(c.Clock); err != nil {
		return err
	}
	if _, err := timing.LookupGrade(c.Grade); err != nil {
		return err
	}
	lines, err := c.SimLines()
	if err != nil {
		return err
	}
	for _, cell := range c.Sim.Stuck {
		if lines > 0 && (cell.Row>>lines != 0 || cell.Col>>lines != 0) {
			return fmt.Errorf("stuck cell (%d, %d) is outside a %s chip", cell.Row, cell.Col, c.Sim.Chip)
		}
	}
	return nil
}

// SimLines returns the address line count of the simulated chip, zero for
// an empty socket.
func (c Config) SimLines() (uint8, error) {
	switch c.Sim.Chip {
	case "4164":
		return dram.Dram4164.AddressLines(), nil
	case "41256", "":
		return dram.Dram41256.AddressLines(), nil
	case "none":
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown simulated chip %q", c.Sim.Chip)
	}
}

// Controller resolves the presets into a controller configuration.
func (c Config) Controller() (dram.Config, timing.Grade, error) {
	clk, err := timing.LookupClock(c.Clock)
	if err != nil {
		return dram.Config{}, timing.Grade{}, err
	}
	g, err := timing.LookupGrade(c.Grade)
	if err != nil {
		return dram.Config{}, timing.Grade{}, err
	}

	return dram.Config{
		ClockHz:          clk.Hz,
		Profile:          g.Profile(clk.Hz),
		TransceiverDelay: timing.TransceiverDelay(c.TransceiverNs, clk.Hz),
		AddressSettle:    c.AddressSettleNs,
		Pattern:          c.Pattern,
	}, g, nil
}
