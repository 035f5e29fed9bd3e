// Package timing holds the DRAM pulse-width constants the controller waits
// on. A Grade carries datasheet minimums for one chip speed; Profile is
// that grade reduced by the one instruction of overhead every signal
// change already costs on a given clock.
package timing

import "fmt"

// Grade is a chip speed grade with datasheet minimums in nanoseconds.
type Grade struct {
	Name string

	RAS uint32 // pulse duration, RAS low
	CAS uint32 // pulse duration, CAS low
	RCD uint32 // RAS low to CAS low delay
	RP  uint32 // pulse duration, RAS high (precharge)
	CP  uint32 // pulse duration, CAS high (precharge)
}

// Profile is the set of waits used by the controller, in nanoseconds.
type Profile struct {
	RowStrobePulse uint32
	ColStrobePulse uint32
	StrobeToStrobe uint32
	RowPrecharge   uint32
	ColPrecharge   uint32
}

// OverheadNs is the whole-nanosecond length of one instruction, which every
// pin write already spends before a wait starts.
func OverheadNs(clockHz uint32) uint32 {
	return 1_000_000_000 / clockHz
}

func saturatingSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

// Profile derives the controller waits for this grade at clockHz.
func (g Grade) Profile(clockHz uint32) Profile {
	o := OverheadNs(clockHz)
	return Profile{
		RowStrobePulse: saturatingSub(g.RAS, o),
		ColStrobePulse: saturatingSub(g.CAS, o),
		StrobeToStrobe: saturatingSub(g.RCD, o),
		RowPrecharge:   saturatingSub(g.RP, o),
		ColPrecharge:   saturatingSub(g.CP, o),
	}
}

// RowStrobeRest is how much longer RAS must stay low after a column strobe
// and the RAS-to-CAS delay have elapsed.
func (p Profile) RowStrobeRest() uint32 {
	return saturatingSub(p.RowStrobePulse, p.ColStrobePulse+p.StrobeToStrobe)
}

func (p Profile) String() string {
	return fmt.Sprintf("tRAS=%dns tCAS=%dns tRCD=%dns tRP=%dns tCP=%dns rest=%dns",
		p.RowStrobePulse, p.ColStrobePulse, p.StrobeToStrobe, p.RowPrecharge, p.ColPrecharge, p.RowStrobeRest())
}

// TransceiverDelay returns the wait that covers the propagation delay of the
// level shifter sitting between the chip's DOUT and the input pin.
func TransceiverDelay(propagationNs, clockHz uint32) uint32 {
	return saturatingSub(propagationNs, OverheadNs(clockHz))
}

// SN74HCTPropagationNs is the typical propagation delay of the SN74HCT
// buffer on the DOUT line.
const SN74HCTPropagationNs = 14
