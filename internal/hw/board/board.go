// Package board talks to the motor/sensor controller board over a serial
// line protocol. The board owns the reflectance sensors and the two wheel
// motors; the Raspberry Pi only sends commands and reads replies.
//
// Protocol, one ASCII line per message:
//
//	R L | R R          -> <raw>       read left/right reflectance
//	D <left> <right>   -> OK          continuous wheel speeds (%)
//	M <l> <r> <deg>    -> OK          drive by wheel degrees, reply when done
//	B                  -> OK          brake both wheels
//
// Any command may be answered with "ERR <message>".
package board

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/cjeanneret/LineGo/internal/debug"
)

// ErrFault is returned when the board reports an error or the link breaks.
var ErrFault = errors.New("controller board fault")

// Board is a serial connection to the controller board. It is safe for
// concurrent use; commands are serialized.
type Board struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
	r    *bufio.Reader
}

// Open opens the serial port at path.
func Open(path string, opts PortOptions) (*Board, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	debug.Info("Controller board on %s (%d baud)", path, mode.BaudRate)

	return New(port), nil
}

// New wraps an already open link.
func New(port io.ReadWriteCloser) *Board {
	return &Board{port: port, r: bufio.NewReader(port)}
}

// Close closes the link.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port.Close()
}

// ReadReflectance reads the raw reflectance of one side ("L" or "R").
func (b *Board) ReadReflectance(side string) (int, error) {
	reply, err := b.command("R " + side)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(reply)
	if err != nil {
		return 0, fmt.Errorf("%w: bad reflectance reply %q", ErrFault, reply)
	}
	return v, nil
}

// DriveContinuous implements motion.Actuator.
func (b *Board) DriveContinuous(left, right float64) error {
	return b.expectOK(fmt.Sprintf("D %.1f %.1f", left, right))
}

// DriveDegrees implements motion.Actuator; it blocks until the board reports
// the move complete.
func (b *Board) DriveDegrees(left, right, degrees float64) error {
	return b.expectOK(fmt.Sprintf("M %.1f %.1f %.0f", left, right, degrees))
}

// Brake implements motion.Actuator.
func (b *Board) Brake() error {
	return b.expectOK("B")
}

// Sensor is one reflectance sensor on the board.
type Sensor struct {
	b    *Board
	side string
}

// Left returns the left reflectance sensor.
func (b *Board) Left() Sensor { return Sensor{b: b, side: "L"} }

// Right returns the right reflectance sensor.
func (b *Board) Right() Sensor { return Sensor{b: b, side: "R"} }

// ReadRaw implements the polled sensor capability.
func (s Sensor) ReadRaw() (int, error) {
	return s.b.ReadReflectance(s.side)
}

func (b *Board) expectOK(cmd string) error {
	reply, err := b.command(cmd)
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("%w: unexpected reply %q to %q", ErrFault, reply, cmd)
	}
	return nil
}

func (b *Board) command(cmd string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	debug.Serial(">", cmd)
	if _, err := io.WriteString(b.port, cmd+"\n"); err != nil {
		return "", fmt.Errorf("%w: write %q: %w", ErrFault, cmd, err)
	}

	line, err := b.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("%w: read reply to %q: %w", ErrFault, cmd, err)
	}
	line = strings.TrimSpace(line)
	debug.Serial("<", line)

	if msg, ok := strings.CutPrefix(line, "ERR"); ok {
		return "", fmt.Errorf("%w: %s", ErrFault, strings.TrimSpace(msg))
	}
	return line, nil
}
