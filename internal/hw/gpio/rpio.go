package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/LineGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// PiDriver drives the Raspberry Pi header through go-rpio. Pins must be
// configured with SetupPin before use; buttons do this when created.
type PiDriver struct {
	mu    sync.Mutex
	modes map[int]PinMode
}

// NewPiDriver maps GPIO memory. Needs /dev/gpiomem or root.
func NewPiDriver() (*PiDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open GPIO: %w (not a Raspberry Pi?)", err)
	}
	debug.Info("GPIO: go-rpio driver ready")
	return &PiDriver{modes: make(map[int]PinMode)}, nil
}

// rpioSettings maps a pin mode to the go-rpio direction and pull resistor.
func rpioSettings(mode PinMode) (rpio.Mode, rpio.Pull, error) {
	switch mode {
	case Input:
		return rpio.Input, rpio.PullOff, nil
	case InputPullUp:
		return rpio.Input, rpio.PullUp, nil
	case Output:
		return rpio.Output, rpio.PullOff, nil
	}
	return 0, 0, fmt.Errorf("unknown pin mode %d", mode)
}

func (d *PiDriver) SetupPin(pin int, mode PinMode) error {
	dir, pull, err := rpioSettings(mode)
	if err != nil {
		return fmt.Errorf("pin %d: %w", pin, err)
	}
	debug.GPIO("setup", pin, mode)

	d.mu.Lock()
	defer d.mu.Unlock()
	p := rpio.Pin(pin)
	p.Mode(dir)
	if dir == rpio.Input {
		p.Pull(pull)
	}
	d.modes[pin] = mode
	return nil
}

func (d *PiDriver) mode(pin int) (PinMode, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.modes[pin]
	return m, ok
}

func (d *PiDriver) WritePin(pin int, level Level) error {
	if m, ok := d.mode(pin); !ok || m != Output {
		return fmt.Errorf("pin %d is not configured as output", pin)
	}
	debug.GPIO("write", pin, level)
	if level == High {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
	return nil
}

func (d *PiDriver) ReadPin(pin int) (Level, error) {
	if _, ok := d.mode(pin); !ok {
		return Low, fmt.Errorf("pin %d is not configured", pin)
	}
	level := Level(rpio.Pin(pin).Read() == rpio.High)
	debug.GPIO("read", pin, level)
	return level, nil
}

// Close releases pull resistors, returns every used pin to a plain input and
// unmaps GPIO memory.
func (d *PiDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for pin := range d.modes {
		p := rpio.Pin(pin)
		p.Input()
		p.PullOff()
	}
	d.modes = map[int]PinMode{}
	debug.Verbose("GPIO: pins released")
	return rpio.Close()
}
