// Package sim is a kinematic track model that stands in for the controller
// board when no hardware is attached. It exposes two reflectance sensors and
// implements motion.Actuator, so the full control stack runs on a PC.
//
// The model is deliberately one-dimensional: the robot advances along a
// straight line with intersections at fixed positions (in wheel degrees) and
// drifts sideways in proportion to the wheel speed difference.
package sim

import (
	"math"
	"sync"

	"github.com/cjeanneret/LineGo/internal/debug"
)

// Layout describes the simulated track and its readings.
type Layout struct {
	Start             float64 // first intersection, wheel degrees from the start zone
	Spacing           float64 // distance between intersections
	Count             int     // number of intersections
	Width             float64 // length of track covered by one intersection
	Black, White      int     // raw readings over the line and over background
	DegreesPerPercent float64 // travel per tick per % of wheel speed
	Drift             float64 // lateral drift per tick per % of speed difference
	Span              float64 // lateral deviation at which a sensor fully sees the line
}

// DefaultLayout returns a track with count evenly spaced intersections and
// readings matching the default calibration.
func DefaultLayout(count int) Layout {
	return Layout{
		Start:             500,
		Spacing:           600,
		Count:             count,
		Width:             40,
		Black:             8,
		White:             70,
		DegreesPerPercent: 0.2,
		Drift:             0.01,
		Span:              1,
	}
}

// Track is the simulated robot state. It is safe for concurrent use.
type Track struct {
	mu        sync.Mutex
	layout    Layout
	position  float64
	deviation float64
	speedL    float64
	speedR    float64
	moves     int
}

func NewTrack(layout Layout) *Track {
	if layout.Span <= 0 {
		layout.Span = 1
	}
	return &Track{layout: layout}
}

// Reset puts the robot back in the start zone.
func (t *Track) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.position, t.deviation = 0, 0
	t.speedL, t.speedR = 0, 0
}

// Position returns how far the robot has travelled along the track.
func (t *Track) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// Deviation returns the lateral tracking deviation.
func (t *Track) Deviation() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deviation
}

// Moves returns how many blocking drives were executed.
func (t *Track) Moves() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.moves
}

// OnIntersection reports whether the robot stands on an intersection.
func (t *Track) OnIntersection() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onIntersection()
}

func (t *Track) onIntersection() bool {
	l := t.layout
	for i := 0; i < l.Count; i++ {
		at := l.Start + float64(i)*l.Spacing
		if t.position >= at && t.position < at+l.Width {
			return true
		}
	}
	return false
}

// reading returns the raw value of one sensor. side is -1 for left and +1
// for right; a positive deviation moves the line under the left sensor.
func (t *Track) reading(side float64) int {
	l := t.layout
	if t.onIntersection() {
		return l.Black
	}
	dark := 0.4 - side*t.deviation/l.Span
	dark = math.Max(0, math.Min(1, dark))
	return int(math.Round(float64(l.White) - float64(l.White-l.Black)*dark))
}

// DriveContinuous applies one tick of motion at the given wheel speeds.
func (t *Track) DriveContinuous(left, right float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speedL, t.speedR = left, right
	t.position += (left + right) / 2 * t.layout.DegreesPerPercent
	t.deviation += (right - left) * t.layout.Drift
	return nil
}

// DriveDegrees completes a blocking move. Equal-sign speeds move the robot
// forward; opposite speeds pivot in place and re-acquire the line.
func (t *Track) DriveDegrees(left, right, degrees float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.moves++
	switch {
	case left > 0 && right > 0:
		t.position += degrees
	case left < 0 && right < 0:
		t.position -= degrees
	default:
		t.deviation = 0
	}
	debug.Trace("sim: move %.1f/%.1f by %.0f -> position %.0f", left, right, degrees, t.position)
	return nil
}

// Brake stops both wheels.
func (t *Track) Brake() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speedL, t.speedR = 0, 0
	return nil
}

// Sensor is one simulated reflectance sensor.
type Sensor struct {
	t    *Track
	side float64
}

// Left returns the left sensor.
func (t *Track) Left() Sensor { return Sensor{t: t, side: -1} }

// Right returns the right sensor.
func (t *Track) Right() Sensor { return Sensor{t: t, side: 1} }

// ReadRaw returns the current raw reflectance.
func (s Sensor) ReadRaw() (int, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.t.reading(s.side), nil
}
