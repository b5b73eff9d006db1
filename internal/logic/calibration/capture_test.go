package calibration

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedSensor returns readings from a queue, repeating the last one.
type scriptedSensor struct {
	values []int
	i      int
}

func (s *scriptedSensor) ReadRaw() (int, error) {
	v := s.values[s.i]
	if s.i < len(s.values)-1 {
		s.i++
	}
	return v, nil
}

// phasedSensor reports white until the confirm button was pressed once, then black.
type phasedSensor struct {
	white, black int
	confirm      *countingButton
}

func (s *phasedSensor) ReadRaw() (int, error) {
	if s.confirm.presses <= 1 {
		return s.white, nil
	}
	return s.black, nil
}

// countingButton reports a press on every poll and counts them.
type countingButton struct {
	presses int
	never   bool
}

func (b *countingButton) Pressed() bool {
	if b.never {
		return false
	}
	b.presses++
	return true
}

func TestCapturer_Run(t *testing.T) {
	confirm := &countingButton{}
	c := &Capturer{
		Left:    &phasedSensor{white: 72, black: 9, confirm: confirm},
		Right:   &phasedSensor{white: 68, black: 7, confirm: confirm},
		Confirm: confirm,
		Back:    &countingButton{never: true},
		Samples: 3,
		Poll:    time.Millisecond,
	}

	cal, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := Calibration{Left: Bounds{Black: 9, White: 72}, Right: Bounds{Black: 7, White: 68}}
	if cal != want {
		t.Errorf("calibration = %+v, want %+v", cal, want)
	}
}

func TestCapturer_ReversedSurfaces(t *testing.T) {
	confirm := &countingButton{}
	// Operator presents the line first, then the background.
	c := &Capturer{
		Left:    &phasedSensor{white: 9, black: 72, confirm: confirm},
		Right:   &phasedSensor{white: 7, black: 68, confirm: confirm},
		Confirm: confirm,
		Samples: 1,
		Poll:    time.Millisecond,
	}

	cal, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cal.Left.Black != 9 || cal.Left.White != 72 {
		t.Errorf("left bounds = %+v, want swapped to {9 72}", cal.Left)
	}
}

func TestCapturer_BackCancels(t *testing.T) {
	c := &Capturer{
		Left:    &scriptedSensor{values: []int{50}},
		Right:   &scriptedSensor{values: []int{50}},
		Confirm: &countingButton{never: true},
		Back:    &countingButton{},
		Poll:    time.Millisecond,
	}
	var prompts [][]string
	c.Prompt = func(lines ...string) { prompts = append(prompts, lines) }

	_, err := c.Run(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	last := prompts[len(prompts)-1]
	if last[0] != "CANCELED" {
		t.Errorf("last prompt = %v, want CANCELED", last)
	}
}

func TestCapturer_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Capturer{
		Left:    &scriptedSensor{values: []int{50}},
		Right:   &scriptedSensor{values: []int{50}},
		Confirm: &countingButton{never: true},
		Poll:    time.Millisecond,
	}
	if _, err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCapturer_AveragesSamples(t *testing.T) {
	s := &scriptedSensor{values: []int{60, 70, 80}}
	c := &Capturer{Samples: 3}
	got, err := c.sample(s)
	if err != nil {
		t.Fatal(err)
	}
	if got != 70 {
		t.Errorf("sample = %d, want 70", got)
	}
}
