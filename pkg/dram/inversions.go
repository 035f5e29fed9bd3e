package dram

import (
	"fmt"
	"math/bits"

	"github.com/mscrnt/project_dram/pkg/pin"
)

// Result is the outcome of one moving inversions run. A run with no failed
// bits passed; otherwise Row and Col locate the last failing cell seen.
type Result struct {
	FailedBits uint32
	Row        uint32
	Col        uint32

	// Sweeps is the number of full-array sweeps that were executed. A
	// complete run makes six; a failing check sweep ends the run.
	Sweeps int
}

// Passed reports whether no cell failed.
func (r Result) Passed() bool {
	return r.FailedBits == 0
}

type direction int

const (
	ascending direction = iota
	descending
)

func (d direction) String() string {
	if d == descending {
		return "descending"
	}
	return "ascending"
}

// at maps the i'th step of a sweep over n addresses to an address.
func (d direction) at(i, n uint32) uint32 {
	if d == descending {
		return n - 1 - i
	}
	return i
}

// inversions is the bookkeeping of one test run.
type inversions[O pin.Output, I pin.Input] struct {
	c   *Controller[O, I]
	n   uint32
	res Result
}

func (m *inversions[O, I]) fail(row, col uint32) {
	m.res.FailedBits++
	m.res.Row = row
	m.res.Col = col
}

// fill writes the pattern to every cell, one page-mode row at a time.
func (m *inversions[O, I]) fill(dir direction) error {
	c := m.c
	for i := uint32(0); i < m.n; i++ {
		row := dir.at(i, m.n)
		val := c.pattern

		if err := c.writeEnable(true); err != nil {
			return err
		}
		if err := c.openRow(row); err != nil {
			return err
		}
		for j := uint32(0); j < m.n; j++ {
			if err := c.writePage(dir.at(j, m.n), val&1 != 0); err != nil {
				return err
			}
			val = bits.RotateLeft32(val, -1)
		}
		if err := c.closeRow(); err != nil {
			return err
		}
		if err := c.writeEnable(false); err != nil {
			return err
		}
	}
	m.res.Sweeps++
	return nil
}

// checkAndInvert verifies the pattern and complements every cell that
// matched, leaving failing cells untouched.
func (m *inversions[O, I]) checkAndInvert(dir direction) error {
	c := m.c
	for i := uint32(0); i < m.n; i++ {
		row := dir.at(i, m.n)
		val := c.pattern

		if err := c.openRow(row); err != nil {
			return err
		}
		for j := uint32(0); j < m.n; j++ {
			col := dir.at(j, m.n)
			bit := val&1 != 0

			got, err := c.readPage(col)
			if err != nil {
				return err
			}
			if got != bit {
				m.fail(row, col)
			} else {
				if err := c.writeEnable(true); err != nil {
					return err
				}
				if err := c.writePage(col, !bit); err != nil {
					return err
				}
				if err := c.writeEnable(false); err != nil {
					return err
				}
			}
			val = bits.RotateLeft32(val, -1)
		}
		if err := c.closeRow(); err != nil {
			return err
		}
	}
	m.res.Sweeps++
	return nil
}

// checkInverted verifies that every cell holds the complemented pattern.
func (m *inversions[O, I]) checkInverted(dir direction) error {
	c := m.c
	for i := uint32(0); i < m.n; i++ {
		row := dir.at(i, m.n)
		val := c.pattern

		if err := c.openRow(row); err != nil {
			return err
		}
		for j := uint32(0); j < m.n; j++ {
			col := dir.at(j, m.n)

			got, err := c.readPage(col)
			if err != nil {
				return err
			}
			if got != (val&1 == 0) {
				m.fail(row, col)
			}
			val = bits.RotateLeft32(val, -1)
		}
		if err := c.closeRow(); err != nil {
			return err
		}
	}
	m.res.Sweeps++
	return nil
}

// MovingInversions tests the whole cell array of a chip decoding
// addressLines address lines. The pattern is written ascending, checked and
// inverted, and checked again, then the same is repeated descending. The
// run stops after the first check sweep that found a failure.
//
// The returned error is only set when a pin could not be driven; memory
// failures are reported in the Result.
func (c *Controller[O, I]) MovingInversions(addressLines uint8) (Result, error) {
	if addressLines == 0 || addressLines > 16 {
		return Result{}, fmt.Errorf("unsupported address line count %d", addressLines)
	}

	m := &inversions[O, I]{c: c, n: 1 << addressLines}

	steps := []struct {
		run   func(direction) error
		dir   direction
		check bool
	}{
		{m.fill, ascending, false},
		{m.checkAndInvert, ascending, true},
		{m.checkInverted, ascending, true},
		{m.fill, descending, false},
		{m.checkAndInvert, descending, true},
		{m.checkInverted, descending, true},
	}

	for _, s := range steps {
		if err := s.run(s.dir); err != nil {
			return m.res, fmt.Errorf("moving inversions aborted in %s sweep %d: %w", s.dir, m.res.Sweeps+1, err)
		}
		if s.check && m.res.FailedBits > 0 {
			break
		}
	}

	if m.res.Passed() {
		c.logger.Printf("Moving inversions passed on %d lines (%d sweeps)", addressLines, m.res.Sweeps)
	} else {
		c.logger.Printf("Moving inversions failed on %d lines: %d bits, last at row %d col %d",
			addressLines, m.res.FailedBits, m.res.Row, m.res.Col)
	}
	return m.res, nil
}
