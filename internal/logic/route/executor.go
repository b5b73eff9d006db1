package route

import (
	"time"

	"github.com/cjeanneret/LineGo/internal/debug"
	"github.com/cjeanneret/LineGo/internal/logic/motion"
)

// Mover is the subset of the motion controller used by maneuvers.
type Mover interface {
	Forward(speed, degrees float64) error
	Pivot(dir motion.Direction, speed, degrees float64) error
	Stop() error
}

// Maneuvers holds the fixed distances, angles and dwell times of a course.
type Maneuvers struct {
	BaseSpeed         float64       // forward speed for scripted drives
	TurnSpeed         float64       // wheel speed during pivots
	TurnDegrees       float64       // pivot for left/right
	UTurnDegrees      float64       // pivot for a reversal
	PassDegrees       float64       // pass-through to clear an intersection
	BeforeTurnDegrees float64       // forward drive before a pivot
	FinalDegrees      float64       // forward drive and pivot of the final stop
	PickupDwell       time.Duration // hold at the pickup intersection
	PauseDwell        time.Duration // hold for a pause action
}

// Executor turns sequencer steps into blocking motion. Every maneuver runs to
// completion before control returns to the loop.
type Executor struct {
	move    Mover
	m       Maneuvers
	publish func(label string)
	sleep   func(time.Duration)
}

// NewExecutor creates an executor. publish receives status labels and may be nil.
func NewExecutor(mv Mover, m Maneuvers, publish func(label string)) *Executor {
	if publish == nil {
		publish = func(string) {}
	}
	return &Executor{move: mv, m: m, publish: publish, sleep: time.Sleep}
}

// Execute performs the maneuver of a step.
func (e *Executor) Execute(route string, step Step) error {
	switch step.Kind {
	case StepPickup:
		debug.Live("Intersection %d: picking up passengers", step.Passed)
		if err := e.dwell("Picking up passengers", e.m.PickupDwell); err != nil {
			return err
		}
		return e.move.Forward(e.m.BaseSpeed, e.m.PassDegrees)
	case StepAction:
		debug.Action(route, string(step.Action))
		return e.action(step.Action)
	default:
		return e.move.Forward(e.m.BaseSpeed, e.m.PassDegrees)
	}
}

func (e *Executor) action(a Action) error {
	switch a {
	case Left:
		e.publish(a.Label())
		return e.turn(motion.Left, e.m.TurnDegrees)
	case Right:
		e.publish(a.Label())
		return e.turn(motion.Right, e.m.TurnDegrees)
	case UTurn:
		e.publish(a.Label())
		return e.turn(motion.Left, e.m.UTurnDegrees)
	case Pause:
		if err := e.dwell(a.Label(), e.m.PauseDwell); err != nil {
			return err
		}
		return e.move.Forward(e.m.BaseSpeed, e.m.PassDegrees)
	case Stop:
		if err := e.move.Forward(e.m.BaseSpeed, e.m.FinalDegrees); err != nil {
			return err
		}
		if err := e.move.Pivot(motion.Left, e.m.TurnSpeed, e.m.FinalDegrees); err != nil {
			return err
		}
		return e.move.Stop()
	case Straight:
		e.publish(a.Label())
		return e.move.Forward(e.m.BaseSpeed, e.m.PassDegrees)
	default:
		debug.Info("Unknown route action %q, going straight", string(a))
		return e.move.Forward(e.m.BaseSpeed, e.m.PassDegrees)
	}
}

func (e *Executor) turn(dir motion.Direction, degrees float64) error {
	if err := e.move.Forward(e.m.BaseSpeed, e.m.BeforeTurnDegrees); err != nil {
		return err
	}
	return e.move.Pivot(dir, e.m.TurnSpeed, degrees)
}

func (e *Executor) dwell(label string, d time.Duration) error {
	if err := e.move.Stop(); err != nil {
		return err
	}
	e.publish(label)
	e.sleep(d)
	e.publish("Moving")
	return nil
}
