package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/LineGo/internal/debug"
)

// ErrCancelled is returned when the operator backs out of a calibration.
var ErrCancelled = errors.New("calibration cancelled")

// Sensor is a reflectance sensor polled for raw readings.
type Sensor interface {
	ReadRaw() (int, error)
}

// Presser is a push button exposing debounced presses.
type Presser interface {
	Pressed() bool
}

// Capturer walks the operator through the two-step capture: both sensors over
// the background, then both sensors over the line.
type Capturer struct {
	Left, Right Sensor
	Confirm     Presser
	Back        Presser
	Samples     int
	Poll        time.Duration
	// Prompt shows instructions to the operator. Optional.
	Prompt func(lines ...string)
}

// Run performs the capture and returns the resulting calibration.
func (c *Capturer) Run(ctx context.Context) (Calibration, error) {
	c.prompt("CALIBRATION", "", "WHITE -> ENTER", "BACK to cancel")
	lw, rw, err := c.captureStep(ctx)
	if err != nil {
		return Calibration{}, err
	}
	debug.Live("Calibration white: left=%d right=%d", lw, rw)

	c.prompt("CALIBRATION", fmt.Sprintf("WHITE: L=%d R=%d", lw, rw), "", "BLACK -> ENTER", "BACK to cancel")
	lb, rb, err := c.captureStep(ctx)
	if err != nil {
		return Calibration{}, err
	}
	debug.Live("Calibration black: left=%d right=%d", lb, rb)

	cal := Calibration{
		Left:  Capture(lw, lb),
		Right: Capture(rw, rb),
	}
	c.prompt("DONE",
		fmt.Sprintf("L: B=%d W=%d", cal.Left.Black, cal.Left.White),
		fmt.Sprintf("R: B=%d W=%d", cal.Right.Black, cal.Right.White))
	return cal, nil
}

func (c *Capturer) captureStep(ctx context.Context) (int, int, error) {
	if err := c.waitConfirm(ctx); err != nil {
		return 0, 0, err
	}
	left, err := c.sample(c.Left)
	if err != nil {
		return 0, 0, fmt.Errorf("sample left sensor: %w", err)
	}
	right, err := c.sample(c.Right)
	if err != nil {
		return 0, 0, fmt.Errorf("sample right sensor: %w", err)
	}
	return left, right, nil
}

func (c *Capturer) waitConfirm(ctx context.Context) error {
	poll := c.Poll
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if c.Back != nil && c.Back.Pressed() {
			c.prompt("CANCELED")
			return ErrCancelled
		}
		if c.Confirm.Pressed() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Capturer) sample(s Sensor) (int, error) {
	n := c.Samples
	if n <= 0 {
		n = 1
	}
	samples := make([]int, 0, n)
	for i := 0; i < n; i++ {
		raw, err := s.ReadRaw()
		if err != nil {
			return 0, err
		}
		samples = append(samples, raw)
	}
	return Average(samples), nil
}

func (c *Capturer) prompt(lines ...string) {
	if c.Prompt != nil {
		c.Prompt(lines...)
	}
}
