package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscrnt/project_dram/pkg/timing"
)

const testClock = 125_000_000

// wait advances the board clock by ns, rounded up to whole cycles.
func wait(b *Board, ns int64) {
	for ns > 0 {
		b.Clock().Nop()
		ns -= b.Clock().cycleNs
	}
}

// write performs a slow early-write cycle that meets every datasheet limit.
func write(t *testing.T, b *Board, row, col uint32, bit bool) {
	t.Helper()
	require.NoError(t, b.DIN.Set(bit))
	require.NoError(t, b.WE.SetLow())
	require.NoError(t, b.Addr.Toggle(b.Address()^row))
	require.NoError(t, b.RAS.SetLow())
	wait(b, 200)
	require.NoError(t, b.Addr.Toggle(b.Address()^col))
	require.NoError(t, b.CAS.SetLow())
	wait(b, 200)
	require.NoError(t, b.CAS.SetHigh())
	require.NoError(t, b.WE.SetHigh())
	require.NoError(t, b.RAS.SetHigh())
	wait(b, 200)
}

func read(t *testing.T, b *Board, row, col uint32) bool {
	t.Helper()
	require.NoError(t, b.Addr.Toggle(b.Address()^row))
	require.NoError(t, b.RAS.SetLow())
	wait(b, 200)
	require.NoError(t, b.Addr.Toggle(b.Address()^col))
	require.NoError(t, b.CAS.SetLow())
	wait(b, 200)
	require.NoError(t, b.CAS.SetHigh())
	bit, err := b.DOUT.IsHigh()
	require.NoError(t, err)
	require.NoError(t, b.RAS.SetHigh())
	wait(b, 200)
	return bit
}

func TestClock(t *testing.T) {
	c := NewClock(150_000_000)
	c.Loop3(2)
	c.Nop()

	assert.Equal(t, uint64(7), c.Cycles())
	assert.Equal(t, int64(49), c.Now(), "150 MHz cycles are rounded up to 7ns")
}

func TestChipReadWrite(t *testing.T) {
	b := NewBoard(testClock)
	chip := New41256()
	chip.CheckTiming(timing.Grade150)
	b.Insert(chip)

	write(t, b, 0, 0, true)
	write(t, b, 511, 511, true)
	write(t, b, 3, 7, false)

	assert.True(t, read(t, b, 0, 0))
	assert.True(t, read(t, b, 511, 511))
	assert.False(t, read(t, b, 3, 7))
	assert.True(t, chip.Peek(511, 511))

	stats := chip.Stats()
	assert.Equal(t, uint64(3), stats.Writes)
	assert.Equal(t, uint64(3), stats.Reads)
	assert.Zero(t, stats.Violations)
}

func TestChipAliasing(t *testing.T) {
	tests := []struct {
		name    string
		chip    *Chip
		aliased bool
	}{
		{name: "4164 ignores address bit 8", chip: New4164(), aliased: true},
		{name: "41256 decodes address bit 8", chip: New41256(), aliased: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBoard(testClock)
			b.Insert(tt.chip)

			write(t, b, 8, 8, false)
			write(t, b, 264, 264, true)
			assert.Equal(t, tt.aliased, read(t, b, 8, 8))
		})
	}
}

func TestEmptySocketReadsHigh(t *testing.T) {
	b := NewBoard(testClock)

	write(t, b, 0, 0, false)
	assert.True(t, read(t, b, 0, 0))
}

func TestStuckCell(t *testing.T) {
	b := NewBoard(testClock)
	chip := New4164()
	chip.Stick(5, 5, false)
	b.Insert(chip)

	write(t, b, 5, 5, true)
	assert.False(t, read(t, b, 5, 5))
	assert.False(t, chip.Peek(5, 5))
}

func TestTimingViolationDropsAccess(t *testing.T) {
	b := NewBoard(testClock)
	chip := New4164()
	chip.CheckTiming(timing.Grade150)
	b.Insert(chip)

	// CAS pulse of two cycles is far below tCAS
	require.NoError(t, b.DIN.SetHigh())
	require.NoError(t, b.WE.SetLow())
	require.NoError(t, b.RAS.SetLow())
	wait(b, 100)
	require.NoError(t, b.CAS.SetLow())
	b.Clock().Nop()
	require.NoError(t, b.CAS.SetHigh())
	wait(b, 200)
	require.NoError(t, b.RAS.SetHigh())

	v, ok := chip.LastViolation()
	require.True(t, ok)
	assert.Equal(t, "tCAS", v.Param)
	assert.Equal(t, int64(16), v.Width)
	assert.Contains(t, v.Error(), "tCAS violated")
	assert.False(t, chip.Peek(0, 0), "write with a short CAS pulse must be dropped")
	assert.Zero(t, chip.Stats().Writes)

	// precharge too short before the next row opens
	require.NoError(t, b.RAS.SetLow())
	v, _ = chip.LastViolation()
	assert.Equal(t, "tRP", v.Param)
	assert.Equal(t, uint64(2), chip.Stats().Violations)
}

func TestBoardFaults(t *testing.T) {
	b := NewBoard(testClock)
	bang := errors.New("bank contention")

	b.Fail(RAS, bang)
	err := b.RAS.SetLow()
	assert.ErrorIs(t, err, bang)
	assert.Contains(t, err.Error(), "RAS")
	assert.True(t, b.Level(RAS), "failed write must not change the line")

	b.Fail(RAS, nil)
	assert.NoError(t, b.RAS.SetLow())

	b.Fail(DOUT, bang)
	_, err = b.DOUT.IsLow()
	assert.ErrorIs(t, err, bang)

	b.Fail(ADDR, bang)
	assert.ErrorIs(t, b.Addr.Toggle(1), bang)
}

func TestPortCountsToggles(t *testing.T) {
	b := NewBoard(testClock)

	require.NoError(t, b.Addr.Toggle(0x3))
	require.NoError(t, b.Addr.Toggle(0))
	require.NoError(t, b.Addr.Toggle(0x1))

	assert.Equal(t, uint32(0x2), b.Address())
	assert.Equal(t, uint64(2), b.Toggles())
	assert.Equal(t, "WE=high", b.WE.String())
}

func TestSwapChip(t *testing.T) {
	b := NewBoard(testClock)
	first := New4164()
	b.Insert(first)
	write(t, b, 1, 1, true)

	assert.Same(t, first, b.Remove())
	assert.Nil(t, b.Chip())

	b.Insert(New41256())
	assert.False(t, read(t, b, 1, 1), "a new chip starts cleared")
	assert.Equal(t, uint8(9), b.Chip().Lines())
}

func TestChipAfterWrites(t *testing.T) {
	b := NewBoard(testClock)
	chip := New4164()
	b.Insert(chip)

	var fired []uint64
	chip.After(2, func(c *Chip) {
		fired = append(fired, c.Stats().Writes)
		c.Stick(1, 1, false)
	})

	write(t, b, 1, 1, true)
	assert.True(t, read(t, b, 1, 1))
	assert.Empty(t, fired)

	write(t, b, 0, 0, true)
	write(t, b, 1, 1, true)
	assert.Equal(t, []uint64{2}, fired, "hook runs once, after the second write")
	assert.False(t, read(t, b, 1, 1))
}
