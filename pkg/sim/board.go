package sim

import (
	"fmt"

	"github.com/mscrnt/project_dram/pkg/pin"
)

// Signal names a line between the CPU and the socket.
type Signal int

const (
	WE Signal = iota
	CAS
	RAS
	DIN
	DOUT
	ADDR
	LED
	numSignals
)

var signalNames = [numSignals]string{"WE", "CAS", "RAS", "DIN", "DOUT", "ADDR", "LED"}

func (s Signal) String() string {
	if s < 0 || s >= numSignals {
		return fmt.Sprintf("signal(%d)", int(s))
	}
	return signalNames[s]
}

// Board is the CPU side of the socket: the control pins, the address port,
// a status LED and the virtual clock they all run on. A chip can be
// inserted or removed at any time; an empty socket reads DOUT high.
type Board struct {
	clock *Clock
	chip  *Chip

	levels [numSignals]bool
	addr   uint32
	toggle uint64
	faults [numSignals]error

	WE, CAS, RAS, DIN, LED *Output
	DOUT                   *Input
	Addr                   *Port
}

// NewBoard creates a board for a CPU running at clockHz with an empty
// socket. Strobes and WE idle high; address lines start low.
func NewBoard(clockHz uint32) *Board {
	b := &Board{clock: NewClock(clockHz)}
	b.levels[WE] = true
	b.levels[CAS] = true
	b.levels[RAS] = true

	b.WE = &Output{b: b, sig: WE}
	b.CAS = &Output{b: b, sig: CAS}
	b.RAS = &Output{b: b, sig: RAS}
	b.DIN = &Output{b: b, sig: DIN}
	b.LED = &Output{b: b, sig: LED}
	b.DOUT = &Input{b: b}
	b.Addr = &Port{b: b}
	return b
}

// Clock returns the virtual clock, which is also the delay executor for
// anything driving this board.
func (b *Board) Clock() *Clock {
	return b.clock
}

// Insert places chip in the socket, replacing any chip already there.
func (b *Board) Insert(chip *Chip) {
	b.chip = chip
}

// Remove empties the socket and returns the chip that was in it.
func (b *Board) Remove() *Chip {
	c := b.chip
	b.chip = nil
	return c
}

// Chip returns the chip in the socket, or nil.
func (b *Board) Chip() *Chip {
	return b.chip
}

// Fail makes every later access to sig return err. A nil err clears the
// fault.
func (b *Board) Fail(sig Signal, err error) {
	b.faults[sig] = err
}

// Level returns the level currently driven on sig.
func (b *Board) Level(sig Signal) bool {
	return b.levels[sig]
}

// Address returns the value on the address lines.
func (b *Board) Address() uint32 {
	return b.addr
}

// Toggles is the number of address port writes that changed at least one
// line.
func (b *Board) Toggles() uint64 {
	return b.toggle
}

func (b *Board) drive(sig Signal, high bool) error {
	if err := b.faults[sig]; err != nil {
		return fmt.Errorf("%s: %w", sig, err)
	}

	now := b.clock.Now()
	prev := b.levels[sig]
	b.levels[sig] = high

	if b.chip != nil && prev != high {
		switch sig {
		case RAS:
			if high {
				b.chip.rasRise(now)
			} else {
				b.chip.rasFall(now, b.addr)
			}
		case CAS:
			if high {
				b.chip.casRise(now)
			} else {
				b.chip.casFall(now, b.addr, !b.levels[WE], b.levels[DIN])
			}
		}
	}

	// a pin write is one instruction
	b.clock.Nop()
	return nil
}

// Output is a simulated push-pull output pin.
type Output struct {
	b   *Board
	sig Signal
}

func (o *Output) SetHigh() error      { return o.b.drive(o.sig, true) }
func (o *Output) SetLow() error       { return o.b.drive(o.sig, false) }
func (o *Output) Set(high bool) error { return o.b.drive(o.sig, high) }
func (o *Output) String() string      { return o.sig.String() + "=" + pin.State(o.b.levels[o.sig]) }

// Input is the simulated DOUT pin.
type Input struct {
	b *Board
}

// IsHigh samples DOUT. An empty socket reads high.
func (i *Input) IsHigh() (bool, error) {
	if err := i.b.faults[DOUT]; err != nil {
		return false, fmt.Errorf("%s: %w", DOUT, err)
	}
	i.b.clock.Nop()

	if i.b.chip == nil {
		return true, nil
	}
	return i.b.chip.dout, nil
}

// IsLow samples DOUT.
func (i *Input) IsLow() (bool, error) {
	high, err := i.IsHigh()
	return !high, err
}

// Port is the simulated address line group.
type Port struct {
	b *Board
}

// Toggle flips the address lines selected by mask in one write.
func (p *Port) Toggle(mask uint32) error {
	if err := p.b.faults[ADDR]; err != nil {
		return fmt.Errorf("%s: %w", ADDR, err)
	}
	if mask != 0 {
		p.b.toggle++
	}
	p.b.addr ^= mask
	p.b.clock.Nop()
	return nil
}

var (
	_ pin.Output = (*Output)(nil)
	_ pin.Input  = (*Input)(nil)
	_ pin.Port   = (*Port)(nil)
)
