package route

import "fmt"

// State is the phase of a route run.
type State int

const (
	Tracking State = iota
	Deciding
	Finished
)

func (s State) String() string {
	switch s {
	case Tracking:
		return "TRACKING"
	case Deciding:
		return "DECIDING"
	case Finished:
		return "FINISHED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StepKind classifies what happens at a newly counted intersection.
type StepKind int

const (
	// StepPickup halts for passengers, then passes through.
	StepPickup StepKind = iota + 1
	// StepAction executes a scripted action.
	StepAction
	// StepPassThrough drives across the intersection.
	StepPassThrough
)

func (k StepKind) String() string {
	switch k {
	case StepPickup:
		return "pickup"
	case StepAction:
		return "action"
	case StepPassThrough:
		return "pass-through"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is the decision taken at one intersection.
type Step struct {
	Kind     StepKind
	Action   Action // set for StepAction
	Passed   int    // intersections counted including this one
	Finished bool   // the run ends once this step is executed
}

// NavigationState is the mutable state of one route run.
type NavigationState struct {
	IntersectionsPassed int
	PickedUpPassengers  bool
	PostStopIndex       int
}

// Sequencer is the discrete state machine of a route run. It is owned by a
// single control loop and never shared.
type Sequencer struct {
	plan  Plan
	nav   NavigationState
	state State
}

func NewSequencer(p Plan) *Sequencer {
	return &Sequencer{plan: p, state: Tracking}
}

// Plan returns the plan being executed.
func (s *Sequencer) Plan() Plan {
	return s.plan
}

// State returns the current phase.
func (s *Sequencer) State() State {
	return s.state
}

// Navigation returns a copy of the navigation state.
func (s *Sequencer) Navigation() NavigationState {
	return s.nav
}

// Arrive records a newly counted intersection and decides what to do there.
// The sequencer stays in Deciding until Done is called.
func (s *Sequencer) Arrive() Step {
	if s.state == Finished {
		return Step{Kind: StepPassThrough, Passed: s.nav.IntersectionsPassed, Finished: true}
	}
	s.state = Deciding
	s.nav.IntersectionsPassed++
	passed := s.nav.IntersectionsPassed

	if passed == s.plan.StopAt && !s.nav.PickedUpPassengers {
		s.nav.PickedUpPassengers = true
		return Step{Kind: StepPickup, Passed: passed, Finished: s.fixedCountDone()}
	}

	if s.plan.Scripted() && s.nav.PickedUpPassengers {
		s.nav.PostStopIndex++
		action := Stop
		if s.nav.PostStopIndex <= len(s.plan.Actions) {
			action = s.plan.Actions[s.nav.PostStopIndex-1]
		}
		return Step{Kind: StepAction, Action: action, Passed: passed, Finished: action == Stop}
	}

	return Step{Kind: StepPassThrough, Passed: passed, Finished: s.fixedCountDone()}
}

// Done marks the step as executed and returns to Tracking or Finished.
func (s *Sequencer) Done(step Step) {
	if step.Finished {
		s.state = Finished
		return
	}
	s.state = Tracking
}

// Finish forces the terminal state (operator cancel, hardware fault).
func (s *Sequencer) Finish() {
	s.state = Finished
}

func (s *Sequencer) fixedCountDone() bool {
	return !s.plan.Scripted() && s.nav.IntersectionsPassed >= s.plan.Total
}
