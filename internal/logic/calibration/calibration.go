// Package calibration holds reflectance bounds per sensor and maps raw
// readings onto the 0 (line) .. 100 (background) scale.
package calibration

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Bounds are the raw readings of one sensor over the line (Black) and over
// the background (White). Black <= White always holds for values built with
// NewBounds or Capture.
type Bounds struct {
	Black int `yaml:"black"`
	White int `yaml:"white"`
}

// Calibration groups the bounds of both sensors.
type Calibration struct {
	Left  Bounds `yaml:"left"`
	Right Bounds `yaml:"right"`
}

// NewBounds returns bounds with black and white swapped if given reversed.
func NewBounds(black, white int) Bounds {
	if black > white {
		black, white = white, black
	}
	return Bounds{Black: black, White: white}
}

// Capture builds bounds from a reading taken over the background and one
// taken over the line. An operator presenting the surfaces in the wrong
// order yields the same bounds.
func Capture(whiteRaw, blackRaw int) Bounds {
	return NewBounds(blackRaw, whiteRaw)
}

// Normalize maps raw onto [0, 100] where 0 is black and 100 is white.
// A degenerate calibration (white == black) yields 0.
func Normalize(raw, black, white int) float64 {
	if white == black {
		return 0
	}
	v := float64(raw-black) * 100.0 / float64(white-black)
	return clamp(v, 0, 100)
}

// Normalize maps raw onto [0, 100] using these bounds.
func (b Bounds) Normalize(raw int) float64 {
	return Normalize(raw, b.Black, b.White)
}

// Threshold is the midpoint between black and white.
func (b Bounds) Threshold() float64 {
	return float64(b.Black+b.White) / 2
}

// IsDark reports whether raw is below the midpoint threshold.
func (b Bounds) IsDark(raw int) bool {
	return float64(raw) < b.Threshold()
}

// Degenerate reports whether the bounds cannot discriminate line from background.
func (b Bounds) Degenerate() bool {
	return b.White == b.Black
}

// Average returns the rounded mean of a set of raw samples (0 for none).
func Average(samples []int) int {
	if len(samples) == 0 {
		return 0
	}
	xs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = float64(s)
	}
	return int(math.Round(stat.Mean(xs, nil)))
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
