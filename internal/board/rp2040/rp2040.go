//go:build tinygo && rp2040

// Package rp2040 wires the tester to the RP2040 board: address lines on
// GPIO0-8, control lines on GPIO11-15 and the TXS0108E level shifter
// enable on GPIO16.
package rp2040

import (
	"device/arm"
	"device/rp"
	"machine"
	"time"

	"github.com/mscrnt/project_dram/pkg/dram"
	"github.com/mscrnt/project_dram/pkg/pin"
)

const (
	// AddressMask covers GPIO0-8.
	AddressMask uint32 = 0x1ff

	pinWE   = machine.GPIO11
	pinCAS  = machine.GPIO12
	pinRAS  = machine.GPIO13
	pinDIN  = machine.GPIO14
	pinDOUT = machine.GPIO15
	pinOE   = machine.GPIO16

	// rails need this long before the pins are touched
	railSettle = 500 * time.Millisecond
)

// Output is a push-pull GPIO.
type Output machine.Pin

func (o Output) SetHigh() error {
	machine.Pin(o).High()
	return nil
}

func (o Output) SetLow() error {
	machine.Pin(o).Low()
	return nil
}

func (o Output) Set(high bool) error {
	machine.Pin(o).Set(high)
	return nil
}

// Input is a floating GPIO input.
type Input machine.Pin

func (i Input) IsHigh() (bool, error) {
	return machine.Pin(i).Get(), nil
}

func (i Input) IsLow() (bool, error) {
	return !machine.Pin(i).Get(), nil
}

// AddressPort flips address lines through the SIO XOR alias so all nine
// change in one store.
type AddressPort struct{}

func (AddressPort) Toggle(mask uint32) error {
	rp.SIO.GPIO_OUT_XOR.Set(mask & AddressMask)
	return nil
}

// Cycles busy-waits on the core. A subs/bne iteration takes three cycles
// on the Cortex-M0+.
type Cycles struct{}

// Loop3 counts down in the output register so n itself is never written.
// The mov makes up for the final bne not being taken.
func (Cycles) Loop3(n uint32) {
	if n == 0 {
		return
	}
	arm.AsmFull(`
		mov {}, {n}
	1:
		subs {}, #1
		bne 1b
	`, map[string]interface{}{"n": n})
}

func (Cycles) Nop() {
	arm.Asm("nop")
}

// Board holds the configured pins.
type Board struct {
	Pins dram.Pins[Output, Input]
	Addr AddressPort
	Exec Cycles
	LED  Output
}

// Setup waits for the rails, configures every pin and enables the level
// shifter. The address lines start low as the controller expects.
func Setup() *Board {
	time.Sleep(railSettle)

	out := machine.PinConfig{Mode: machine.PinOutput}
	for p := machine.GPIO0; p <= machine.GPIO8; p++ {
		p.Configure(out)
		p.Low()
	}
	for _, p := range []machine.Pin{pinWE, pinCAS, pinRAS, pinDIN, machine.LED} {
		p.Configure(out)
	}
	pinDOUT.Configure(machine.PinConfig{Mode: machine.PinInput})

	// shifter stays disabled until the control lines are driven
	pinOE.Configure(out)
	pinOE.Low()
	pinWE.High()
	pinCAS.High()
	pinRAS.High()
	pinOE.High()

	return &Board{
		Pins: dram.Pins[Output, Input]{
			WE:   Output(pinWE),
			CAS:  Output(pinCAS),
			RAS:  Output(pinRAS),
			DIN:  Output(pinDIN),
			DOUT: Input(pinDOUT),
		},
		LED: Output(machine.LED),
	}
}

// ClockHz is the running system clock.
func ClockHz() uint32 {
	return machine.CPUFrequency()
}

var (
	_ pin.Output = Output(0)
	_ pin.Input  = Input(0)
	_ pin.Port   = AddressPort{}
)
