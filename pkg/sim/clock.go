// Package sim is a software model of a 4164/41256 DRAM socket running on
// virtual time. It gives the controller real pins to drive in tests and on
// hosts without the hardware, and it checks every strobe against the
// datasheet pulse widths.
package sim

import "github.com/mscrnt/project_dram/pkg/delay"

// Clock is the virtual CPU clock. Busy waits and pin accesses advance it;
// nothing else does.
type Clock struct {
	now     int64
	cycleNs int64
	cycles  uint64
}

// NewClock creates a clock for a CPU running at clockHz. Cycles last the
// whole number of nanoseconds the delay engine assumes.
func NewClock(clockHz uint32) *Clock {
	return &Clock{cycleNs: int64(delay.NsPerCycle(clockHz))}
}

// Loop3 implements delay.Executor.
func (c *Clock) Loop3(n uint32) {
	c.advance(3 * uint64(n))
}

// Nop implements delay.Executor.
func (c *Clock) Nop() {
	c.advance(1)
}

func (c *Clock) advance(cycles uint64) {
	c.cycles += cycles
	c.now += int64(cycles) * c.cycleNs
}

// Now is the elapsed virtual time in nanoseconds.
func (c *Clock) Now() int64 {
	return c.now
}

// Cycles is the number of CPU cycles spent so far.
func (c *Clock) Cycles() uint64 {
	return c.cycles
}
