package tester

import (
	"fmt"
	"io"

	"github.com/mscrnt/project_dram/pkg/dram"
)

// Console is a Display that writes the same text the board's OLED shows.
type Console struct {
	w io.Writer
}

// NewConsole creates a console display writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) ShowChip(kind dram.ChipKind) error {
	_, err := fmt.Fprintf(c.w, "Chip: %s\n", kind)
	return err
}

func (c *Console) ShowPass(count uint32) error {
	_, err := fmt.Fprintf(c.w, "PASS #%d\n", count)
	return err
}

func (c *Console) ShowFailure(res dram.Result) error {
	_, err := fmt.Fprintf(c.w, "FAILS: %d\nRow %d\nCol %d\n = %X\n",
		res.FailedBits, res.Row, res.Col, BitIndex(res))
	return err
}
