// Package linetrack computes wheel commands that keep the robot centered on
// the line and detects intersections where both sensors see the line.
package linetrack

// Config holds the fixed proportional-law tuning of a hardware build.
type Config struct {
	Kp        float64 // gain applied to the left/right reflectance difference
	BaseSpeed float64 // forward speed with zero error (% of motor max)
	MaxSpeed  float64 // saturation for each wheel (% of motor max)
}

// Command is a pair of wheel speeds, each within [-MaxSpeed, MaxSpeed].
type Command struct {
	Left  float64
	Right float64
}

// Tracker is a stateless proportional line follower.
type Tracker struct {
	cfg Config
}

func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// Config returns the tracker tuning.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Error is the steering error for a pair of normalized readings. Positive
// means the left sensor sees more background than the right one.
func Error(leftNorm, rightNorm float64) float64 {
	return leftNorm - rightNorm
}

// Steer applies turn = Kp*err symmetrically around the base speed and clamps
// each wheel to the configured maximum.
func (t *Tracker) Steer(err float64) Command {
	turn := t.cfg.Kp * err
	left := t.cfg.BaseSpeed - turn
	right := t.cfg.BaseSpeed + turn
	return Command{
		Left:  Clamp(left, -t.cfg.MaxSpeed, t.cfg.MaxSpeed),
		Right: Clamp(right, -t.cfg.MaxSpeed, t.cfg.MaxSpeed),
	}
}

// Command computes the wheel command for a pair of normalized readings.
func (t *Tracker) Command(leftNorm, rightNorm float64) Command {
	return t.Steer(Error(leftNorm, rightNorm))
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
