// Package tester runs the detect-and-test loop around a DRAM controller:
// wait for a working chip, identify it, then test it pass after pass until
// it is pulled or replaced.
package tester

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mscrnt/project_dram/pkg/dram"
	"github.com/mscrnt/project_dram/pkg/pin"
)

// ErrNoChip is returned when detection gives up before a chip responds.
var ErrNoChip = errors.New("no working chip detected")

// Socket is the part of a dram.Controller the loop uses.
type Socket interface {
	Init() error
	IsWorking() (bool, error)
	Is41256() (bool, error)
	SameChip(kind dram.ChipKind) (bool, error)
	MovingInversions(addressLines uint8) (dram.Result, error)
}

// Display shows the loop's progress. Implementations render however they
// like; they receive plain data only.
type Display interface {
	ShowChip(kind dram.ChipKind) error
	ShowPass(count uint32) error
	ShowFailure(res dram.Result) error
}

// Options bound a session. Zero values mean no limit.
type Options struct {
	// MaxRuns stops the session after this many moving inversions runs.
	MaxRuns int
	// DetectAttempts stops the session with ErrNoChip after this many
	// detection attempts in a row find nothing.
	DetectAttempts int
}

// Summary is what a session did.
type Summary struct {
	Chip     dram.ChipKind
	Runs     int
	Passes   int
	Failures int
	// Streak is the number of passes since the last failure.
	Streak uint32
	// Restarts counts how often the chip vanished or changed kind.
	Restarts int
	Last     dram.Result
	Start    time.Time
	End      time.Time
}

// Session drives one socket.
type Session struct {
	socket  Socket
	display Display
	led     pin.Output
	opts    Options
	logger  *log.Logger
}

// NewSession creates a session. led may be nil.
func NewSession(socket Socket, display Display, led pin.Output, opts Options, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		socket:  socket,
		display: display,
		led:     led,
		opts:    opts,
		logger:  logger,
	}
}

func (s *Session) setLED(on bool) error {
	if s.led == nil {
		return nil
	}
	if err := s.led.Set(on); err != nil {
		return fmt.Errorf("failed to drive LED: %w", err)
	}
	return nil
}

// detect waits for a working chip and identifies it.
func (s *Session) detect(ctx context.Context) (dram.ChipKind, error) {
	for attempt := 1; ; attempt++ {
		if err := s.socket.Init(); err != nil {
			return dram.Unknown, fmt.Errorf("failed to initialize socket: %w", err)
		}

		ok, err := s.socket.IsWorking()
		if err != nil {
			return dram.Unknown, fmt.Errorf("failed to probe socket: %w", err)
		}
		if ok {
			break
		}

		if err := s.display.ShowChip(dram.Unknown); err != nil {
			return dram.Unknown, err
		}
		if s.opts.DetectAttempts > 0 && attempt >= s.opts.DetectAttempts {
			return dram.Unknown, ErrNoChip
		}
		if err := ctx.Err(); err != nil {
			return dram.Unknown, err
		}
	}

	big, err := s.socket.Is41256()
	if err != nil {
		return dram.Unknown, fmt.Errorf("failed to detect chip type: %w", err)
	}
	if big {
		return dram.Dram41256, nil
	}
	return dram.Dram4164, nil
}

func (s *Session) done(ctx context.Context, sum *Summary) bool {
	if ctx.Err() != nil {
		return true
	}
	return s.opts.MaxRuns > 0 && sum.Runs >= s.opts.MaxRuns
}

// Run executes the loop until ctx is cancelled, the run limit is reached,
// or a pin fails. Cancellation is only noticed between runs and between
// detection attempts; a run in progress always completes.
func (s *Session) Run(ctx context.Context) (sum Summary, err error) {
	sum.Start = time.Now()
	defer func() { sum.End = time.Now() }()

	for !s.done(ctx, &sum) {
		if err := s.setLED(false); err != nil {
			return sum, err
		}

		kind, err := s.detect(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return sum, nil
			}
			return sum, err
		}
		sum.Chip = kind
		sum.Streak = 0
		s.logger.Printf("Detected %s chip (%d address lines)", kind, kind.AddressLines())
		if err := s.display.ShowChip(kind); err != nil {
			return sum, err
		}

		if err := s.test(ctx, kind, &sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// test runs moving inversions on kind until the chip changes or the
// session is done.
func (s *Session) test(ctx context.Context, kind dram.ChipKind, sum *Summary) error {
	for !s.done(ctx, sum) {
		same, err := s.socket.SameChip(kind)
		if err != nil {
			return fmt.Errorf("failed to recheck chip: %w", err)
		}
		if !same {
			// chip changed, or removed, restart
			s.logger.Printf("Chip %s removed or replaced, restarting detection", kind)
			sum.Restarts++
			return nil
		}

		res, err := s.socket.MovingInversions(kind.AddressLines())
		if err != nil {
			return err
		}
		sum.Runs++
		sum.Last = res

		if res.Passed() {
			sum.Passes++
			sum.Streak++
			if err := s.setLED(true); err != nil {
				return err
			}
			s.logger.Printf("PASS #%d", sum.Streak)
			if err := s.display.ShowPass(sum.Streak); err != nil {
				return err
			}
			continue
		}

		sum.Failures++
		sum.Streak = 0
		if err := s.setLED(false); err != nil {
			return err
		}
		s.logger.Printf("%d broken bits, last failed bit: row %d, col %d (bit %d)",
			res.FailedBits, res.Row, res.Col, BitIndex(res))
		if err := s.display.ShowFailure(res); err != nil {
			return err
		}
	}
	return nil
}

// BitIndex is the linear index of the failing cell as printed on the
// display, with 256 columns per row.
func BitIndex(res dram.Result) uint32 {
	return res.Row*256 + res.Col
}
