package timing

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownGrade is returned when no speed grade has the requested name.
	ErrUnknownGrade = errors.New("unknown speed grade")
	// ErrUnknownClock is returned when no clock preset has the requested name.
	ErrUnknownClock = errors.New("unknown clock preset")
)

// Timing configuration from the TMS4256 datasheet.
var (
	Grade150 = Grade{Name: "150ns", RAS: 150, CAS: 75, RCD: 25, RP: 100, CP: 60}
	Grade120 = Grade{Name: "120ns", RAS: 120, CAS: 60, RCD: 25, RP: 90, CP: 50}
	Grade100 = Grade{Name: "100ns", RAS: 100, CAS: 50, RCD: 25, RP: 90, CP: 40}
	Grade80  = Grade{Name: "80ns", RAS: 80, CAS: 40, RCD: 25, RP: 70, CP: 20}
)

// Clock is a system clock preset the board PLL can be brought up at.
type Clock struct {
	Name string
	Hz   uint32
}

// Clock presets known to work on the RP2040.
var (
	Clock125 = Clock{Name: "125MHz", Hz: 125_000_000}
	Clock150 = Clock{Name: "150MHz", Hz: 150_000_000}
	Clock225 = Clock{Name: "225MHz", Hz: 225_000_000}
	Clock250 = Clock{Name: "250MHz", Hz: 250_000_000}
	Clock300 = Clock{Name: "300MHz", Hz: 300_000_000}
)

// Registry manages the speed grades and clock presets available to a build.
type Registry struct {
	mu     sync.RWMutex
	grades map[string]Grade
	clocks map[string]Clock
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		grades: make(map[string]Grade),
		clocks: make(map[string]Clock),
	}
}

// globalRegistry holds the built-in presets
var globalRegistry = func() *Registry {
	r := NewRegistry()
	for _, g := range []Grade{Grade150, Grade120, Grade100, Grade80} {
		if err := r.RegisterGrade(g); err != nil {
			panic(fmt.Sprintf("failed to register grade: %v", err))
		}
	}
	for _, c := range []Clock{Clock125, Clock150, Clock225, Clock250, Clock300} {
		if err := r.RegisterClock(c); err != nil {
			panic(fmt.Sprintf("failed to register clock: %v", err))
		}
	}
	return r
}()

// RegisterGrade adds a speed grade to the registry
func (r *Registry) RegisterGrade(g Grade) error {
	if g.Name == "" {
		return fmt.Errorf("grade name cannot be empty")
	}
	if g.RAS == 0 || g.CAS == 0 {
		return fmt.Errorf("grade %q: RAS and CAS pulse widths are required", g.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.grades[g.Name]; exists {
		return fmt.Errorf("grade %q already registered", g.Name)
	}
	r.grades[g.Name] = g
	return nil
}

// RegisterClock adds a clock preset to the registry
func (r *Registry) RegisterClock(c Clock) error {
	if c.Name == "" {
		return fmt.Errorf("clock name cannot be empty")
	}
	if c.Hz == 0 {
		return fmt.Errorf("clock %q: frequency must be positive", c.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clocks[c.Name]; exists {
		return fmt.Errorf("clock %q already registered", c.Name)
	}
	r.clocks[c.Name] = c
	return nil
}

// Grade looks up a speed grade by name.
func (r *Registry) Grade(name string) (Grade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.grades[name]
	if !ok {
		return Grade{}, fmt.Errorf("%w: %q", ErrUnknownGrade, name)
	}
	return g, nil
}

// Clock looks up a clock preset by name.
func (r *Registry) Clock(name string) (Clock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clocks[name]
	if !ok {
		return Clock{}, fmt.Errorf("%w: %q", ErrUnknownClock, name)
	}
	return c, nil
}

// Grades returns all registered grades, slowest first.
func (r *Registry) Grades() []Grade {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grades := make([]Grade, 0, len(r.grades))
	for _, g := range r.grades {
		grades = append(grades, g)
	}
	sort.Slice(grades, func(i, j int) bool {
		return grades[i].RAS > grades[j].RAS
	})
	return grades
}

// Clocks returns all registered clock presets, slowest first.
func (r *Registry) Clocks() []Clock {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clocks := make([]Clock, 0, len(r.clocks))
	for _, c := range r.clocks {
		clocks = append(clocks, c)
	}
	sort.Slice(clocks, func(i, j int) bool {
		return clocks[i].Hz < clocks[j].Hz
	})
	return clocks
}

// LookupGrade retrieves a built-in speed grade.
func LookupGrade(name string) (Grade, error) {
	return globalRegistry.Grade(name)
}

// LookupClock retrieves a built-in clock preset.
func LookupClock(name string) (Clock, error) {
	return globalRegistry.Clock(name)
}

// Grades lists the built-in speed grades.
func Grades() []Grade {
	return globalRegistry.Grades()
}

// Clocks lists the built-in clock presets.
func Clocks() []Clock {
	return globalRegistry.Clocks()
}
