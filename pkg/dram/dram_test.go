package dram

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscrnt/project_dram/pkg/sim"
	"github.com/mscrnt/project_dram/pkg/timing"
)

type simController = Controller[*sim.Output, *sim.Input]

func newSimController(t *testing.T, clockHz uint32, g timing.Grade, pattern uint32) (*simController, *sim.Board) {
	t.Helper()

	b := sim.NewBoard(clockHz)
	pins := Pins[*sim.Output, *sim.Input]{WE: b.WE, CAS: b.CAS, RAS: b.RAS, DIN: b.DIN, DOUT: b.DOUT}
	cfg := Config{
		ClockHz:          clockHz,
		Profile:          g.Profile(clockHz),
		TransceiverDelay: timing.TransceiverDelay(timing.SN74HCTPropagationNs, clockHz),
		Pattern:          pattern,
	}

	c, err := New(pins, b.Addr, b.Clock(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, c.Init())
	return c, b
}

func insert(b *sim.Board, chip *sim.Chip, g timing.Grade) *sim.Chip {
	chip.CheckTiming(g)
	b.Insert(chip)
	return chip
}

func requireNoViolations(t *testing.T, chip *sim.Chip) {
	t.Helper()
	if v, ok := chip.LastViolation(); ok {
		t.Fatalf("%d timing violations, last: %v", chip.Stats().Violations, v)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	b := sim.NewBoard(timing.Clock125.Hz)
	pins := Pins[*sim.Output, *sim.Input]{WE: b.WE, CAS: b.CAS, RAS: b.RAS, DIN: b.DIN, DOUT: b.DOUT}

	_, err := New(pins, b.Addr, b.Clock(), Config{Profile: timing.Grade150.Profile(timing.Clock125.Hz)}, nil)
	assert.Error(t, err)

	_, err = New(pins, b.Addr, b.Clock(), Config{ClockHz: timing.Clock125.Hz}, nil)
	assert.Error(t, err)
}

func TestInitIdlesLines(t *testing.T) {
	_, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)

	assert.True(t, b.Level(sim.WE))
	assert.True(t, b.Level(sim.CAS))
	assert.True(t, b.Level(sim.RAS))
	assert.GreaterOrEqual(t, b.Clock().Now(), int64(10_000_000+16*1_000))
}

func TestSingleBitRoundTrip(t *testing.T) {
	for _, kind := range []ChipKind{Dram4164, Dram41256} {
		n := uint32(1) << kind.AddressLines()
		cells := [][2]uint32{{0, 0}, {n - 1, n - 1}, {0, n - 1}, {n / 2, 3}}

		c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)
		chip := insert(b, sim.NewChip(kind.AddressLines()), timing.Grade150)

		for _, cell := range cells {
			for _, bit := range []bool{true, false} {
				require.NoError(t, c.writeBit(cell[0], cell[1], bit))
				got, err := c.readBit(cell[0], cell[1])
				require.NoError(t, err)
				assert.Equal(t, bit, got, "%s row %d col %d", kind, cell[0], cell[1])
			}
		}
		requireNoViolations(t, chip)
	}
}

func TestPageModeRoundTrip(t *testing.T) {
	c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)
	chip := insert(b, sim.New4164(), timing.Grade150)
	cols := []uint32{0, 1, 17, 254, 255}

	for _, row := range []uint32{0, 255} {
		for _, bit := range []bool{true, false} {
			require.NoError(t, c.writeEnable(true))
			require.NoError(t, c.openRow(row))
			for _, col := range cols {
				require.NoError(t, c.writePage(col, bit))
			}
			require.NoError(t, c.closeRow())
			require.NoError(t, c.writeEnable(false))

			require.NoError(t, c.openRow(row))
			for _, col := range cols {
				got, err := c.readPage(col)
				require.NoError(t, err)
				assert.Equal(t, bit, got, "row %d col %d", row, col)
			}
			require.NoError(t, c.closeRow())
		}
	}
	requireNoViolations(t, chip)
}

func TestTimingHoldsForEveryPreset(t *testing.T) {
	for _, g := range timing.Grades() {
		for _, clk := range timing.Clocks() {
			t.Run(fmt.Sprintf("%s@%s", g.Name, clk.Name), func(t *testing.T) {
				c, b := newSimController(t, clk.Hz, g, DefaultPattern)
				chip := insert(b, sim.New41256(), g)

				kind, err := c.ChipKind()
				require.NoError(t, err)
				assert.Equal(t, Dram41256, kind)

				require.NoError(t, c.writeEnable(true))
				require.NoError(t, c.openRow(3))
				require.NoError(t, c.writePage(4, true))
				require.NoError(t, c.writePage(5, true))
				require.NoError(t, c.closeRow())
				require.NoError(t, c.writeEnable(false))
				require.NoError(t, c.openRow(3))
				for _, col := range []uint32{4, 5} {
					got, err := c.readPage(col)
					require.NoError(t, err)
					assert.True(t, got)
				}
				require.NoError(t, c.closeRow())

				requireNoViolations(t, chip)
			})
		}
	}
}

func TestIsWorking(t *testing.T) {
	tests := []struct {
		name string
		chip func() *sim.Chip
		want bool
	}{
		{name: "empty socket", chip: func() *sim.Chip { return nil }, want: false},
		{name: "healthy 4164", chip: sim.New4164, want: true},
		{name: "healthy 41256", chip: sim.New41256, want: true},
		{
			name: "cell stuck high",
			chip: func() *sim.Chip {
				c := sim.New4164()
				c.Stick(0, 0, true)
				return c
			},
			want: false,
		},
		{
			name: "cell stuck low",
			chip: func() *sim.Chip {
				c := sim.New4164()
				c.Stick(0, 0, false)
				return c
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)
			if chip := tt.chip(); chip != nil {
				b.Insert(chip)
			}

			ok, err := c.IsWorking()
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name  string
		chip  *sim.Chip
		want  ChipKind
		is256 bool
	}{
		{name: "8 address lines", chip: sim.New4164(), want: Dram4164, is256: false},
		{name: "9 address lines", chip: sim.New41256(), want: Dram41256, is256: true},
		{name: "empty socket", want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)
			if tt.chip != nil {
				b.Insert(tt.chip)

				is256, err := c.Is41256()
				require.NoError(t, err)
				assert.Equal(t, tt.is256, is256)
			}

			kind, err := c.ChipKind()
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)

			same, err := c.SameChip(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.want != Unknown, same)
		})
	}
}

func TestSameChipAfterSwap(t *testing.T) {
	c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)
	b.Insert(sim.New41256())

	same, err := c.SameChip(Dram41256)
	require.NoError(t, err)
	assert.True(t, same)

	b.Insert(sim.New4164())
	same, err = c.SameChip(Dram41256)
	require.NoError(t, err)
	assert.False(t, same)

	b.Remove()
	same, err = c.SameChip(Dram4164)
	require.NoError(t, err)
	assert.False(t, same)
}

func TestChipKind(t *testing.T) {
	assert.Equal(t, "4164", Dram4164.String())
	assert.Equal(t, "41256", Dram41256.String())
	assert.Equal(t, "<none>", Unknown.String())
	assert.Equal(t, uint32(65536), Dram4164.Cells())
	assert.Equal(t, uint32(262144), Dram41256.Cells())
	assert.Zero(t, Unknown.Cells())
}

func TestMovingInversionsPass(t *testing.T) {
	tests := []struct {
		name  string
		chip  *sim.Chip
		lines uint8
	}{
		{name: "4164, N=256", chip: sim.New4164(), lines: 8},
		{name: "41256, N=512", chip: sim.New41256(), lines: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)
			chip := insert(b, tt.chip, timing.Grade150)

			res, err := c.MovingInversions(tt.lines)
			require.NoError(t, err)
			assert.True(t, res.Passed())
			assert.Equal(t, 6, res.Sweeps)

			n := uint64(1) << tt.lines
			stats := chip.Stats()
			assert.Equal(t, 4*n*n, stats.Writes)
			assert.Equal(t, 4*n*n, stats.Reads)
			requireNoViolations(t, chip)
		})
	}
}

func TestMovingInversionsFastestPreset(t *testing.T) {
	c, b := newSimController(t, timing.Clock300.Hz, timing.Grade80, DefaultPattern)
	chip := insert(b, sim.New4164(), timing.Grade80)

	res, err := c.MovingInversions(8)
	require.NoError(t, err)
	assert.True(t, res.Passed())
	requireNoViolations(t, chip)
}

func TestMovingInversionsStuckLow(t *testing.T) {
	c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)
	chip := sim.New4164()
	chip.Stick(5, 5, false)
	b.Insert(chip)

	res, err := c.MovingInversions(8)
	require.NoError(t, err)

	assert.False(t, res.Passed())
	assert.Equal(t, Result{FailedBits: 1, Row: 5, Col: 5, Sweeps: 2}, res)

	// the fill plus one complement for every cell but the failing one; the
	// run must stop right after the failing check sweep
	n := uint64(256)
	assert.Equal(t, n*n+n*n-1, chip.Stats().Writes)
	assert.Equal(t, n*n, chip.Stats().Reads)
}

func TestMovingInversionsStuckHigh(t *testing.T) {
	c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)
	chip := sim.New41256()
	chip.Stick(7, 9, true)
	b.Insert(chip)

	// the default pattern is all ones, so the cell only fails once inverted
	res, err := c.MovingInversions(9)
	require.NoError(t, err)
	assert.Equal(t, Result{FailedBits: 1, Row: 7, Col: 9, Sweeps: 3}, res)
}

func TestMovingInversionsReportsLastFailure(t *testing.T) {
	c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)
	chip := sim.New4164()
	chip.Stick(2, 3, false)
	chip.Stick(10, 1, false)
	chip.Stick(200, 0, true)
	b.Insert(chip)

	res, err := c.MovingInversions(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), res.FailedBits)
	assert.Equal(t, uint32(10), res.Row)
	assert.Equal(t, uint32(1), res.Col)
	assert.Equal(t, 2, res.Sweeps)
}

func TestMovingInversionsDescendingFailures(t *testing.T) {
	n := uint64(256)
	tests := []struct {
		name   string
		after  uint64
		stuck  bool
		want   Result
		writes uint64
	}{
		{
			// goes bad during the descending fill, seen by the first
			// descending check
			name:   "stuck low in sweep 5",
			after:  2*n*n + 1,
			stuck:  false,
			want:   Result{FailedBits: 1, Row: 40, Col: 200, Sweeps: 5},
			writes: 4*n*n - 1,
		},
		{
			// goes bad once every cell holds the inverted pattern
			name:   "stuck high in sweep 6",
			after:  4 * n * n,
			stuck:  true,
			want:   Result{FailedBits: 1, Row: 250, Col: 3, Sweeps: 6},
			writes: 4 * n * n,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)
			chip := insert(b, sim.New4164(), timing.Grade150)
			chip.After(tt.after, func(chip *sim.Chip) {
				chip.Stick(tt.want.Row, tt.want.Col, tt.stuck)
			})

			res, err := c.MovingInversions(8)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
			assert.Equal(t, tt.writes, chip.Stats().Writes)
			requireNoViolations(t, chip)
		})
	}
}

func TestMovingInversionsZeroPattern(t *testing.T) {
	c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, 0)
	chip := sim.New4164()
	chip.Stick(3, 4, true)
	b.Insert(chip)

	// an all-clear background finds a stuck-high cell on the first check
	res, err := c.MovingInversions(8)
	require.NoError(t, err)
	assert.Equal(t, Result{FailedBits: 1, Row: 3, Col: 4, Sweeps: 2}, res)
}

func TestMovingInversionsPatternRotation(t *testing.T) {
	const pattern = 0x0000_FFFF
	c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, pattern)
	chip := insert(b, sim.New4164(), timing.Grade150)

	res, err := c.MovingInversions(8)
	require.NoError(t, err)
	require.True(t, res.Passed())
	requireNoViolations(t, chip)

	// the descending sweeps start the pattern at the last column, and leave
	// the array inverted
	for _, row := range []uint32{0, 77, 255} {
		for j := uint32(0); j < 64; j++ {
			col := 255 - j
			want := pattern>>(j%32)&1 == 0
			assert.Equal(t, want, chip.Peek(row, col), "row %d col %d", row, col)
		}
	}
}

func TestMovingInversionsPinFault(t *testing.T) {
	c, b := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)
	b.Insert(sim.New4164())
	bang := errors.New("peripheral contention")
	b.Fail(sim.DOUT, bang)

	_, err := c.MovingInversions(8)
	require.Error(t, err)
	assert.ErrorIs(t, err, bang)
	assert.Contains(t, err.Error(), "ascending sweep 2")

	_, err = c.IsWorking()
	assert.ErrorIs(t, err, bang)

	b.Fail(sim.DOUT, nil)
	b.Fail(sim.ADDR, bang)
	_, err = c.ChipKind()
	assert.ErrorIs(t, err, bang)
}

func TestMovingInversionsRejectsLineCount(t *testing.T) {
	c, _ := newSimController(t, timing.Clock125.Hz, timing.Grade150, DefaultPattern)

	_, err := c.MovingInversions(0)
	assert.Error(t, err)
	_, err = c.MovingInversions(17)
	assert.Error(t, err)
}
