// Package delay implements cycle-counted busy waits.
//
// A wait is described by a Plan, computed once from a nanosecond duration
// and the CPU clock. Executing a plan does no arithmetic and takes no
// data-dependent branches other than the fixed trip count of a 3-cycle
// loop, so the elapsed time is the same on every call.
package delay

import "sync/atomic"

// Executor runs the instructions a Plan is made of. On hardware this is a
// subs/bne loop and a nop; the simulator advances a virtual clock instead.
type Executor interface {
	// Loop3 blocks for exactly 3*n CPU cycles.
	Loop3(n uint32)
	// Nop blocks for one CPU cycle.
	Nop()
}

// Plan is a precomputed busy wait.
type Plan struct {
	Loops uint32 // iterations of the 3-cycle loop
	Nops  uint32 // single-cycle padding, 0 to 3
}

// NsPerCycle returns the length of one CPU cycle in whole nanoseconds,
// rounded up.
func NsPerCycle(clockHz uint32) uint32 {
	n := 1_000_000_000 / clockHz
	if 1_000_000_000%clockHz != 0 {
		n++
	}
	return n
}

// Compute returns the plan that waits at least ns nanoseconds, plus at
// most one cycle, on a CPU running at clockHz.
func Compute(ns, clockHz uint32) Plan {
	perCycle := NsPerCycle(clockHz)

	cycles := ns / perCycle
	rest := ns % perCycle

	p := Plan{
		Loops: cycles / 3,
		Nops:  cycles % 3,
	}
	if rest > 0 {
		// never under-delay
		p.Nops++
	}
	return p
}

// Cycles is the number of CPU cycles the plan blocks for.
func (p Plan) Cycles() uint32 {
	return p.Loops*3 + p.Nops
}

// Nanoseconds is the duration of the plan on a CPU running at clockHz.
func (p Plan) Nanoseconds(clockHz uint32) uint32 {
	return p.Cycles() * NsPerCycle(clockHz)
}

// Engine executes plans on an Executor.
type Engine struct {
	exec Executor
}

// NewEngine creates an engine running on exec.
func NewEngine(exec Executor) *Engine {
	return &Engine{exec: exec}
}

var fenceWord uint32

// fence is a sequentially consistent barrier. Nothing before a wait may be
// moved after it and nothing after it may be moved before it.
func fence() {
	atomic.AddUint32(&fenceWord, 0)
}

// Wait blocks for the duration of p.
func (e *Engine) Wait(p Plan) {
	fence()

	if p.Loops > 0 {
		e.exec.Loop3(p.Loops)
	}

	switch p.Nops {
	case 0:
	case 1:
		e.exec.Nop()
	case 2:
		e.exec.Nop()
		e.exec.Nop()
	case 3:
		e.exec.Nop()
		e.exec.Nop()
		e.exec.Nop()
	}

	fence()
}
