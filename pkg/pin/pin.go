// Package pin defines the digital I/O capabilities the DRAM controller is
// built on. Concrete pins come from the board (TinyGo machine.Pin) or from
// the simulator.
package pin

// Output is a push-pull digital output.
type Output interface {
	SetHigh() error
	SetLow() error
	// Set drives the pin high for true and low for false.
	Set(high bool) error
}

// Input is a digital input.
type Input interface {
	IsHigh() (bool, error)
	IsLow() (bool, error)
}

// Port is a group of output lines that can be changed with a single
// register write. Toggle flips every line whose bit is set in mask and
// leaves the others untouched.
type Port interface {
	Toggle(mask uint32) error
}

// State converts a bool into the level name used in logs.
func State(high bool) string {
	if high {
		return "high"
	}
	return "low"
}
