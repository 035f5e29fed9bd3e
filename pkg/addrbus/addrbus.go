// Package addrbus drives the multiplexed DRAM address lines.
package addrbus

import (
	"fmt"

	"github.com/mscrnt/project_dram/pkg/delay"
	"github.com/mscrnt/project_dram/pkg/pin"
)

// Bus presents addresses on a group of output lines. All lines that change
// for a new address change in the same register write.
//
// The lines must all be low when the Bus is created, and nothing else may
// drive them afterwards: last has to match the pins for the toggle mask to
// be correct, and it is never reset.
type Bus struct {
	port   pin.Port
	delay  *delay.Engine
	settle delay.Plan
	last   uint32
}

// New creates a bus on port. settle is waited after every address change
// and is usually zero; raise it for long traces or ringing.
func New(port pin.Port, engine *delay.Engine, settle delay.Plan) *Bus {
	return &Bus{
		port:   port,
		delay:  engine,
		settle: settle,
	}
}

// Set drives addr onto the address lines.
func (b *Bus) Set(addr uint32) error {
	// only the lines that differ from the current state are flipped
	if err := b.port.Toggle(addr ^ b.last); err != nil {
		return fmt.Errorf("failed to drive address %#x: %w", addr, err)
	}
	b.last = addr

	b.delay.Wait(b.settle)
	return nil
}

// Last returns the address currently on the lines.
func (b *Bus) Last() uint32 {
	return b.last
}
