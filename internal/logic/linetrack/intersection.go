package linetrack

import (
	"github.com/cjeanneret/LineGo/internal/logic/calibration"
	"github.com/cjeanneret/LineGo/internal/logic/edge"
)

// IsIntersection reports whether both sensors read below their own midpoint
// threshold at the same time. A single dark sensor is a line edge, not an
// intersection.
func IsIntersection(leftRaw, rightRaw int, cal calibration.Calibration) bool {
	return cal.Left.IsDark(leftRaw) && cal.Right.IsDark(rightRaw)
}

// Counter counts intersections on rising edges only: the robot has to leave
// an intersection before the next one is counted.
type Counter struct {
	latch  edge.Latch
	passed int
}

// Observe feeds one poll of the intersection condition and reports whether a
// new intersection was counted.
func (c *Counter) Observe(onIntersection bool) bool {
	if c.latch.Update(onIntersection) {
		c.passed++
		return true
	}
	return false
}

// Passed is the number of intersections counted so far.
func (c *Counter) Passed() int {
	return c.passed
}

// OnIntersection reports the debounce latch state.
func (c *Counter) OnIntersection() bool {
	return c.latch.Active()
}
