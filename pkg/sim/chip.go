package sim

import (
	"fmt"

	"github.com/mscrnt/project_dram/pkg/timing"
)

// edges before the first strobe are treated as having happened long ago
const longAgo = -1 << 40

// Violation describes a strobe that was shorter than the datasheet allows.
type Violation struct {
	Param string // tRAS, tCAS, tRCD, tRP or tCP
	At    int64  // virtual time of the offending edge, ns
	Width int64  // measured duration, ns
	Min   uint32 // datasheet minimum, ns
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s violated at %dns: %dns < %dns", v.Param, v.At, v.Width, v.Min)
}

// Stats counts completed accesses.
type Stats struct {
	Writes     uint64
	Reads      uint64
	Violations uint64
}

// access is a column access latched on the falling edge of CAS. It takes
// effect when CAS rises with a legal pulse width.
type access struct {
	col   uint32
	write bool
	bit   bool
	ok    bool
	valid bool
}

// Chip is a 41xx DRAM with 2^lines rows and columns. Address bits above the
// decoded lines are ignored, so larger addresses alias onto smaller ones.
type Chip struct {
	lines uint8
	mask  uint32
	cells []uint64

	stuck map[uint32]bool
	grade *timing.Grade

	rowOpen bool
	row     uint32
	pending access
	dout    bool

	rasFell int64
	rasRose int64
	casFell int64
	casRose int64

	stats Stats
	last  *Violation
	hooks []hook
}

// hook runs once the write counter reaches at.
type hook struct {
	at uint64
	fn func(*Chip)
}

// NewChip creates a chip decoding lines address lines with every cell
// cleared.
func NewChip(lines uint8) *Chip {
	n := uint32(1) << (2 * uint32(lines))
	return &Chip{
		lines:   lines,
		mask:    1<<lines - 1,
		cells:   make([]uint64, (n+63)/64),
		stuck:   make(map[uint32]bool),
		rasFell: longAgo,
		rasRose: longAgo,
		casFell: longAgo,
		casRose: longAgo,
	}
}

// New4164 creates a 64k×1 chip.
func New4164() *Chip {
	return NewChip(8)
}

// New41256 creates a 256k×1 chip.
func New41256() *Chip {
	return NewChip(9)
}

// Lines is the number of decoded address lines.
func (c *Chip) Lines() uint8 {
	return c.lines
}

// CheckTiming makes the chip drop any access whose strobes are shorter
// than g allows.
func (c *Chip) CheckTiming(g timing.Grade) {
	c.grade = &g
}

// Stick makes the cell at row, col always read back value.
func (c *Chip) Stick(row, col uint32, value bool) {
	c.stuck[c.index(row, col)] = value
}

// After calls fn once, right after the chip commits its writes-th write.
// Faults that must appear part way through a test are injected this way.
func (c *Chip) After(writes uint64, fn func(*Chip)) {
	c.hooks = append(c.hooks, hook{at: writes, fn: fn})
}

// Stats returns the access counters.
func (c *Chip) Stats() Stats {
	return c.stats
}

// LastViolation returns the most recent timing violation, if any.
func (c *Chip) LastViolation() (Violation, bool) {
	if c.last == nil {
		return Violation{}, false
	}
	return *c.last, true
}

// Peek returns the stored value of a cell, bypassing the pins.
func (c *Chip) Peek(row, col uint32) bool {
	return c.load(c.index(row, col))
}

// Poke sets the stored value of a cell, bypassing the pins.
func (c *Chip) Poke(row, col uint32, value bool) {
	c.store(c.index(row, col), value)
}

func (c *Chip) index(row, col uint32) uint32 {
	return (row&c.mask)<<c.lines | col&c.mask
}

func (c *Chip) load(i uint32) bool {
	if v, ok := c.stuck[i]; ok {
		return v
	}
	return c.cells[i/64]&(1<<(i%64)) != 0
}

func (c *Chip) store(i uint32, v bool) {
	if v {
		c.cells[i/64] |= 1 << (i % 64)
	} else {
		c.cells[i/64] &^= 1 << (i % 64)
	}
}

// check records a violation when width is below the datasheet minimum.
func (c *Chip) check(param string, now, width int64, limit uint32) bool {
	if width >= int64(limit) {
		return true
	}
	c.stats.Violations++
	c.last = &Violation{Param: param, At: now, Width: width, Min: limit}
	return false
}

func (c *Chip) rasFall(now int64, addr uint32) {
	ok := true
	if c.grade != nil {
		ok = c.check("tRP", now, now-c.rasRose, c.grade.RP)
	}
	c.rasFell = now
	c.rowOpen = ok
	c.row = addr & c.mask
}

func (c *Chip) rasRise(now int64) {
	if c.grade != nil && c.rowOpen {
		c.check("tRAS", now, now-c.rasFell, c.grade.RAS)
	}
	c.rasRose = now
	c.rowOpen = false
	c.pending = access{}
}

func (c *Chip) casFall(now int64, addr uint32, writeEnabled, din bool) {
	c.casFell = now
	if !c.rowOpen {
		// CAS without RAS does not access the array
		c.pending = access{}
		return
	}

	ok := true
	if c.grade != nil {
		ok = c.check("tRCD", now, now-c.rasFell, c.grade.RCD)
		if ok && c.casRose > c.rasFell {
			ok = c.check("tCP", now, now-c.casRose, c.grade.CP)
		}
	}
	c.pending = access{col: addr & c.mask, write: writeEnabled, bit: din, ok: ok, valid: true}
}

func (c *Chip) casRise(now int64) {
	c.casRose = now
	a := c.pending
	c.pending = access{}
	if !a.valid || !a.ok {
		return
	}
	if c.grade != nil && !c.check("tCAS", now, now-c.casFell, c.grade.CAS) {
		return
	}

	i := c.row<<c.lines | a.col
	if a.write {
		c.stats.Writes++
		c.store(i, a.bit)
		for _, h := range c.hooks {
			if h.at == c.stats.Writes {
				h.fn(c)
			}
		}
		return
	}
	c.stats.Reads++
	c.dout = c.load(i)
}
