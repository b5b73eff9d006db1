// Package navigation runs the control loop of a single route: proportional
// line tracking between intersections, scripted maneuvers at them.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/LineGo/internal/debug"
	"github.com/cjeanneret/LineGo/internal/logic/calibration"
	"github.com/cjeanneret/LineGo/internal/logic/linetrack"
	"github.com/cjeanneret/LineGo/internal/logic/motion"
	"github.com/cjeanneret/LineGo/internal/logic/route"
)

// ErrHardware wraps any sensor or actuator failure that aborts a run.
var ErrHardware = errors.New("hardware fault")

// Sensor is a reflectance sensor polled synchronously.
type Sensor interface {
	ReadRaw() (int, error)
}

// Canceller is the operator cancel input, polled once per tick.
type Canceller interface {
	CancelRequested() bool
}

// StatusSink receives progress updates. Publish must not block.
type StatusSink interface {
	Publish(label string, passed, total int, route string)
}

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeFinished  Outcome = "finished"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeAborted   Outcome = "aborted"
)

// Result summarizes a finished run.
type Result struct {
	Route               string
	Outcome             Outcome
	IntersectionsPassed int
	Total               int
	StartedAt           time.Time
	FinishedAt          time.Time
}

// Config is the fixed tuning of a deployment.
type Config struct {
	Calibration      calibration.Calibration
	Tracking         linetrack.Config
	Maneuvers        route.Maneuvers
	StartExitDegrees float64       // forward drive off the start zone before arming detection
	Tick             time.Duration // control loop period; 0 polls back to back
}

// Runner owns the control loop. It runs one route at a time.
type Runner struct {
	left, right Sensor
	motion      *motion.Controller
	cancel      Canceller
	status      StatusSink
	cfg         Config
	tracker     *linetrack.Tracker
}

// NewRunner wires the loop to its capabilities. cancel and sink may be nil.
func NewRunner(left, right Sensor, mc *motion.Controller, cancel Canceller, sink StatusSink, cfg Config) *Runner {
	return &Runner{
		left:    left,
		right:   right,
		motion:  mc,
		cancel:  cancel,
		status:  sink,
		cfg:     cfg,
		tracker: linetrack.NewTracker(cfg.Tracking),
	}
}

// run is the state of one Run call; it is never shared.
type run struct {
	plan    route.Plan
	seq     *route.Sequencer
	counter linetrack.Counter
	result  Result
}

// Run executes a route until it finishes, is cancelled, or hits a hardware
// fault. The motors are braked on every exit path. Scripted maneuvers block
// the loop; cancellation is only honored between ticks.
func (r *Runner) Run(ctx context.Context, plan route.Plan) (Result, error) {
	st := &run{
		plan: plan,
		seq:  route.NewSequencer(plan),
		result: Result{
			Route:     plan.Route,
			Total:     plan.Total,
			StartedAt: time.Now(),
		},
	}
	exec := route.NewExecutor(r.motion, r.cfg.Maneuvers, func(label string) { r.publish(st, label) })

	debug.Info("Route %q: stop at %d, %d intersections expected", plan.Route, plan.StopAt, plan.Total)
	r.publish(st, "Moving")

	if r.cfg.StartExitDegrees > 0 {
		if err := r.motion.Forward(r.cfg.Tracking.BaseSpeed, r.cfg.StartExitDegrees); err != nil {
			return r.abort(st, err)
		}
	}

	var tick <-chan time.Time
	if r.cfg.Tick > 0 {
		ticker := time.NewTicker(r.cfg.Tick)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if r.cancel != nil && r.cancel.CancelRequested() {
			return r.end(st, OutcomeCancelled, "Cancelled by user", nil)
		}
		if err := ctx.Err(); err != nil {
			return r.end(st, OutcomeCancelled, "Cancelled by user", err)
		}

		leftRaw, err := r.left.ReadRaw()
		if err != nil {
			return r.abort(st, fmt.Errorf("read left sensor: %w", err))
		}
		rightRaw, err := r.right.ReadRaw()
		if err != nil {
			return r.abort(st, fmt.Errorf("read right sensor: %w", err))
		}
		debug.Sensors(leftRaw, rightRaw)

		if st.counter.Observe(linetrack.IsIntersection(leftRaw, rightRaw, r.cfg.Calibration)) {
			step := st.seq.Arrive()
			debug.Intersection(step.Passed, plan.Total)
			r.publish(st, "Moving")

			if err := exec.Execute(plan.Route, step); err != nil {
				return r.abort(st, err)
			}
			st.seq.Done(step)
			if st.seq.State() == route.Finished {
				return r.end(st, OutcomeFinished, "Finished", nil)
			}
		} else {
			cmd := r.tracker.Command(
				r.cfg.Calibration.Left.Normalize(leftRaw),
				r.cfg.Calibration.Right.Normalize(rightRaw),
			)
			if err := r.motion.Drive(cmd.Left, cmd.Right); err != nil {
				return r.abort(st, err)
			}
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return r.end(st, OutcomeCancelled, "Cancelled by user", ctx.Err())
			case <-tick:
			}
		}
	}
}

func (r *Runner) publish(st *run, label string) {
	if r.status == nil {
		return
	}
	r.status.Publish(label, st.seq.Navigation().IntersectionsPassed, st.plan.Total, st.plan.Route)
}

func (r *Runner) end(st *run, outcome Outcome, label string, cause error) (Result, error) {
	st.seq.Finish()
	brakeErr := r.motion.Stop()

	st.result.Outcome = outcome
	st.result.IntersectionsPassed = st.seq.Navigation().IntersectionsPassed
	st.result.FinishedAt = time.Now()
	r.publish(st, label)
	debug.Info("Route %q %s after %d intersections", st.plan.Route, outcome, st.result.IntersectionsPassed)

	if cause != nil {
		return st.result, cause
	}
	if brakeErr != nil {
		st.result.Outcome = OutcomeAborted
		return st.result, fmt.Errorf("%w: brake: %w", ErrHardware, brakeErr)
	}
	return st.result, nil
}

func (r *Runner) abort(st *run, cause error) (Result, error) {
	debug.Error(cause)
	res, _ := r.end(st, OutcomeAborted, "Hardware fault", nil)
	res.Outcome = OutcomeAborted
	return res, fmt.Errorf("%w: %w", ErrHardware, cause)
}
