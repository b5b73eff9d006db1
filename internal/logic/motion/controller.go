package motion

import "github.com/cjeanneret/LineGo/internal/debug"

// Actuator is the wheel-motor capability of a differential-drive base.
// Speeds are percentages of motor maximum, distances are wheel degrees.
type Actuator interface {
	// DriveContinuous sets both wheel speeds until superseded or braked.
	DriveContinuous(left, right float64) error
	// DriveDegrees blocks until both wheels turned the given amount, then brakes.
	DriveDegrees(left, right, degrees float64) error
	// Brake stops both wheels immediately.
	Brake() error
}

// Direction selects the side of a pivot turn.
type Direction int

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	if d == Right {
		return "right"
	}
	return "left"
}

// Controller translates wheel speed pairs and discrete maneuvers into
// actuator calls. It performs no sensing and keeps no navigation state.
type Controller struct {
	act Actuator
}

func NewController(act Actuator) *Controller {
	return &Controller{act: act}
}

// Drive issues a continuous command; it returns immediately.
func (c *Controller) Drive(left, right float64) error {
	debug.Drive(left, right)
	return c.act.DriveContinuous(left, right)
}

// DriveByDistance blocks until the commanded rotation completes, then brakes.
func (c *Controller) DriveByDistance(left, right, degrees float64) error {
	debug.Verbose("Motion: drive %.0f deg (left=%.1f right=%.1f)", degrees, left, right)
	return c.act.DriveDegrees(left, right, degrees)
}

// Stop brakes both wheels.
func (c *Controller) Stop() error {
	debug.Verbose("Motion: brake")
	return c.act.Brake()
}

// Forward drives straight for the given wheel degrees.
func (c *Controller) Forward(speed, degrees float64) error {
	return c.DriveByDistance(speed, speed, degrees)
}

// Pivot turns in place: wheels at opposite speeds for the given degrees.
func (c *Controller) Pivot(dir Direction, speed, degrees float64) error {
	if dir == Left {
		return c.DriveByDistance(-speed, speed, degrees)
	}
	return c.DriveByDistance(speed, -speed, degrees)
}
