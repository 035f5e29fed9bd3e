package dram

// ChipKind identifies the installed chip by the number of address lines it
// decodes.
type ChipKind int

const (
	Unknown ChipKind = iota
	Dram4164
	Dram41256
)

func (k ChipKind) String() string {
	switch k {
	case Dram4164:
		return "4164"
	case Dram41256:
		return "41256"
	default:
		return "<none>"
	}
}

// AddressLines is the number of multiplexed address lines the chip decodes,
// or zero for Unknown.
func (k ChipKind) AddressLines() uint8 {
	switch k {
	case Dram4164:
		return 8
	case Dram41256:
		return 9
	default:
		return 0
	}
}

// Cells is the number of one-bit cells in the chip.
func (k ChipKind) Cells() uint32 {
	lines := k.AddressLines()
	if lines == 0 {
		return 0
	}
	return 1 << (2 * lines)
}

// IsWorking reports whether a chip answers in the socket. Cell (0,0) is
// cleared and must read back 0, then set and must read back 1. With no chip
// the DOUT line floats high and the first check fails.
func (c *Controller[O, I]) IsWorking() (bool, error) {
	if err := c.writeBit(0, 0, false); err != nil {
		return false, err
	}
	bit, err := c.readBit(0, 0)
	if err != nil {
		return false, err
	}
	if bit {
		return false, nil
	}

	if err := c.writeBit(0, 0, true); err != nil {
		return false, err
	}
	return c.readBit(0, 0)
}

// Is41256 tells a 41256 from a 4164. Cells (8,8) and (264,264) differ only
// in address bit 8, which a 4164 does not decode, so on a 4164 the second
// write lands on the first cell.
func (c *Controller[O, I]) Is41256() (bool, error) {
	if err := c.writeBit(8, 8, false); err != nil {
		return false, err
	}
	if err := c.writeBit(256+8, 256+8, true); err != nil {
		return false, err
	}

	wrapped, err := c.readBit(8, 8)
	if err != nil {
		return false, err
	}
	return !wrapped, nil
}

// ChipKind probes the socket. It returns Unknown when no chip responds.
func (c *Controller[O, I]) ChipKind() (ChipKind, error) {
	ok, err := c.IsWorking()
	if err != nil || !ok {
		return Unknown, err
	}

	big, err := c.Is41256()
	if err != nil {
		return Unknown, err
	}
	if big {
		return Dram41256, nil
	}
	return Dram4164, nil
}

// SameChip reports whether the socket still holds a working chip of the
// given kind.
func (c *Controller[O, I]) SameChip(kind ChipKind) (bool, error) {
	got, err := c.ChipKind()
	if err != nil {
		return false, err
	}
	return got != Unknown && got == kind, nil
}
