// Package dram drives 4164/41256 style asynchronous DRAM over GPIO pins.
//
// Every memory cycle follows the same shape: the row address is latched by
// pulling RAS low, one or more columns are accessed by pulsing CAS, and RAS
// is released again. All waits are precomputed busy waits, sized from the
// chip's speed grade and the CPU clock when the Controller is built.
package dram

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/mscrnt/project_dram/pkg/addrbus"
	"github.com/mscrnt/project_dram/pkg/delay"
	"github.com/mscrnt/project_dram/pkg/pin"
	"github.com/mscrnt/project_dram/pkg/timing"
)

const (
	// wait after driving the control lines idle before pulsing RAS
	initSettleNs = 10_000_000
	// RAS low and high time of the wake-up pulses
	initPulseNs = 1_000
	// number of RAS-only cycles required before the first access
	initPulses = 8

	// DefaultPattern is the background written by the moving inversions test.
	DefaultPattern uint32 = 0xFFFF_FFFF
)

// Pins are the control signals of the chip. All of them must already be
// configured: outputs push-pull, DOUT a floating input.
type Pins[O pin.Output, I pin.Input] struct {
	WE   O // ~WRITE
	CAS  O // ~CAS
	RAS  O // ~RAS
	DIN  O // data into the chip
	DOUT I // data out of the chip
}

// Config is fixed for the life of a Controller.
type Config struct {
	ClockHz uint32
	Profile timing.Profile

	// TransceiverDelay is waited between a column strobe and sampling DOUT.
	TransceiverDelay uint32
	// AddressSettle is waited after every address change.
	AddressSettle uint32

	// Pattern is the moving inversions background, used as given. Zero is
	// an all-clear background; boards use DefaultPattern.
	Pattern uint32
}

// Validate checks that the configuration can drive a chip.
func (c Config) Validate() error {
	if c.ClockHz == 0 {
		return errors.New("clock frequency must be positive")
	}
	if c.Profile.ColStrobePulse == 0 && c.Profile.RowStrobePulse == 0 {
		return errors.New("timing profile is empty")
	}
	return nil
}

// waits are the precomputed delay plans for one Config.
type waits struct {
	rcd         delay.Plan
	cas         delay.Plan
	rp          delay.Plan
	cp          delay.Plan
	rasRest     delay.Plan
	transceiver delay.Plan
	initSettle  delay.Plan
	initPulse   delay.Plan
}

func newWaits(cfg Config) waits {
	hz := cfg.ClockHz
	return waits{
		rcd:         delay.Compute(cfg.Profile.StrobeToStrobe, hz),
		cas:         delay.Compute(cfg.Profile.ColStrobePulse, hz),
		rp:          delay.Compute(cfg.Profile.RowPrecharge, hz),
		cp:          delay.Compute(cfg.Profile.ColPrecharge, hz),
		rasRest:     delay.Compute(cfg.Profile.RowStrobeRest(), hz),
		transceiver: delay.Compute(cfg.TransceiverDelay, hz),
		initSettle:  delay.Compute(initSettleNs, hz),
		initPulse:   delay.Compute(initPulseNs, hz),
	}
}

// Controller owns the control pins and the address bus of one DRAM socket.
// Nothing else may drive those pins while the Controller exists.
type Controller[O pin.Output, I pin.Input] struct {
	we   O
	cas  O
	ras  O
	din  O
	dout I

	addr    *addrbus.Bus
	delay   *delay.Engine
	t       waits
	pattern uint32
	logger  *log.Logger
}

// New creates a controller. The address lines behind port must all be low.
func New[O pin.Output, I pin.Input](pins Pins[O, I], port pin.Port, exec delay.Executor, cfg Config, logger *log.Logger) (*Controller[O, I], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid controller config: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	engine := delay.NewEngine(exec)

	return &Controller[O, I]{
		we:      pins.WE,
		cas:     pins.CAS,
		ras:     pins.RAS,
		din:     pins.DIN,
		dout:    pins.DOUT,
		addr:    addrbus.New(port, engine, delay.Compute(cfg.AddressSettle, cfg.ClockHz)),
		delay:   engine,
		t:       newWaits(cfg),
		pattern: cfg.Pattern,
		logger:  logger,
	}, nil
}

// Init drives the control lines idle and runs the RAS-only wake-up cycles
// the chip needs after power-up.
func (c *Controller[O, I]) Init() error {
	if err := c.we.SetHigh(); err != nil {
		return fmt.Errorf("failed to release WE: %w", err)
	}
	if err := c.cas.SetHigh(); err != nil {
		return fmt.Errorf("failed to release CAS: %w", err)
	}
	if err := c.ras.SetHigh(); err != nil {
		return fmt.Errorf("failed to release RAS: %w", err)
	}

	c.delay.Wait(c.t.initSettle)

	for i := 0; i < initPulses; i++ {
		if err := c.ras.SetLow(); err != nil {
			return fmt.Errorf("failed to pulse RAS: %w", err)
		}
		c.delay.Wait(c.t.initPulse)
		if err := c.ras.SetHigh(); err != nil {
			return fmt.Errorf("failed to pulse RAS: %w", err)
		}
		c.delay.Wait(c.t.initPulse)
	}
	return nil
}

func (c *Controller[O, I]) openRow(row uint32) error {
	if err := c.addr.Set(row); err != nil {
		return err
	}
	if err := c.ras.SetLow(); err != nil {
		return fmt.Errorf("failed to assert RAS: %w", err)
	}
	c.delay.Wait(c.t.rcd)
	return nil
}

func (c *Controller[O, I]) closeRow() error {
	if err := c.ras.SetHigh(); err != nil {
		return fmt.Errorf("failed to release RAS: %w", err)
	}
	c.delay.Wait(c.t.rp)
	return nil
}

func (c *Controller[O, I]) strobeColumn(col uint32) error {
	if err := c.addr.Set(col); err != nil {
		return err
	}
	if err := c.cas.SetLow(); err != nil {
		return fmt.Errorf("failed to assert CAS: %w", err)
	}
	c.delay.Wait(c.t.cas)
	if err := c.cas.SetHigh(); err != nil {
		return fmt.Errorf("failed to release CAS: %w", err)
	}
	return nil
}

func (c *Controller[O, I]) writeEnable(on bool) error {
	// WE is active low
	if err := c.we.Set(!on); err != nil {
		return fmt.Errorf("failed to drive WE: %w", err)
	}
	return nil
}

func (c *Controller[O, I]) sample() (bool, error) {
	bit, err := c.dout.IsHigh()
	if err != nil {
		return false, fmt.Errorf("failed to sample DOUT: %w", err)
	}
	return bit, nil
}

// writeBit stores one bit with an early write cycle.
func (c *Controller[O, I]) writeBit(row, col uint32, bit bool) error {
	if err := c.din.Set(bit); err != nil {
		return fmt.Errorf("failed to drive DIN: %w", err)
	}
	if err := c.writeEnable(true); err != nil {
		return err
	}
	if err := c.openRow(row); err != nil {
		return err
	}
	if err := c.strobeColumn(col); err != nil {
		return err
	}
	if err := c.writeEnable(false); err != nil {
		return err
	}
	c.delay.Wait(c.t.rasRest)
	return c.closeRow()
}

// readBit fetches one bit with a full read cycle.
func (c *Controller[O, I]) readBit(row, col uint32) (bool, error) {
	if err := c.openRow(row); err != nil {
		return false, err
	}
	if err := c.strobeColumn(col); err != nil {
		return false, err
	}

	// account for bus transceiver delay
	c.delay.Wait(c.t.transceiver)
	bit, err := c.sample()
	if err != nil {
		return false, err
	}
	c.delay.Wait(c.t.rasRest)

	return bit, c.closeRow()
}

// writePage writes one column of the open row. WE must already be asserted.
func (c *Controller[O, I]) writePage(col uint32, bit bool) error {
	if err := c.din.Set(bit); err != nil {
		return fmt.Errorf("failed to drive DIN: %w", err)
	}
	if err := c.strobeColumn(col); err != nil {
		return err
	}
	c.delay.Wait(c.t.cp)
	return nil
}

// readPage reads one column of the open row.
func (c *Controller[O, I]) readPage(col uint32) (bool, error) {
	if err := c.strobeColumn(col); err != nil {
		return false, err
	}

	// account for bus transceiver delay
	c.delay.Wait(c.t.transceiver)
	bit, err := c.sample()
	if err != nil {
		return false, err
	}
	c.delay.Wait(c.t.cp)
	return bit, nil
}
