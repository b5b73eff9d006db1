// Package button reads operator push buttons wired to GPIO inputs.
package button

import (
	"sync"

	"github.com/cjeanneret/LineGo/internal/debug"
	"github.com/cjeanneret/LineGo/internal/hw/gpio"
	"github.com/cjeanneret/LineGo/internal/logic/edge"
)

// Button is a polled push button. Presses are debounced with the same
// rising-edge latch used for intersections: holding the button reports one
// press, it must be released before the next one counts.
type Button struct {
	gpio      gpio.Driver
	pin       int
	activeLow bool

	mu    sync.Mutex
	latch edge.Latch
}

// New configures pin as a button input. Active-low buttons (wired to GND)
// get the internal pull-up.
func New(g gpio.Driver, pin int, activeLow bool) *Button {
	mode := gpio.Input
	if activeLow {
		mode = gpio.InputPullUp
	}
	if err := g.SetupPin(pin, mode); err != nil {
		debug.Error(err)
	}
	return &Button{gpio: g, pin: pin, activeLow: activeLow}
}

// IsPressed reports the instantaneous button state. Read errors count as
// released.
func (b *Button) IsPressed() bool {
	level, err := b.gpio.ReadPin(b.pin)
	if err != nil {
		debug.Error(err)
		return false
	}
	if b.activeLow {
		return level == gpio.Low
	}
	return level == gpio.High
}

// Pressed reports true once per press (released -> pressed edge).
func (b *Button) Pressed() bool {
	down := b.IsPressed()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latch.Update(down)
}

// CancelRequested makes a button usable as the run cancel input.
func (b *Button) CancelRequested() bool {
	return b.Pressed()
}
