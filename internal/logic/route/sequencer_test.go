package route

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// runUntilFinished feeds intersections to the sequencer until it finishes or
// max is reached, returning every step taken.
func runUntilFinished(s *Sequencer, max int) []Step {
	var steps []Step
	for i := 0; i < max && s.State() != Finished; i++ {
		step := s.Arrive()
		steps = append(steps, step)
		s.Done(step)
	}
	return steps
}

func TestSequencer_BlueExpressScenario(t *testing.T) {
	plan, err := NewPlan("Blue Express", 2, 0, DefaultTable())
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	s := NewSequencer(plan)

	steps := runUntilFinished(s, 20)

	want := []Step{
		{Kind: StepPassThrough, Passed: 1},
		{Kind: StepPickup, Passed: 2},
		{Kind: StepAction, Action: Left, Passed: 3},
		{Kind: StepAction, Action: Right, Passed: 4},
		{Kind: StepAction, Action: UTurn, Passed: 5},
		{Kind: StepAction, Action: Left, Passed: 6},
		{Kind: StepAction, Action: Right, Passed: 7},
		{Kind: StepAction, Action: Straight, Passed: 8},
		{Kind: StepAction, Action: Stop, Passed: 9, Finished: true},
	}
	if diff := cmp.Diff(want, steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	if s.State() != Finished {
		t.Errorf("state = %v, want FINISHED", s.State())
	}
	nav := s.Navigation()
	if nav.IntersectionsPassed != 9 || nav.PostStopIndex != 7 || !nav.PickedUpPassengers {
		t.Errorf("navigation state = %+v", nav)
	}
}

func TestSequencer_FixedCountEndsExactly(t *testing.T) {
	plan, err := NewPlan("Red Line", 2, 4, DefaultTable())
	if err != nil {
		t.Fatal(err)
	}
	s := NewSequencer(plan)

	for i := 1; i <= 3; i++ {
		step := s.Arrive()
		if step.Finished {
			t.Fatalf("finished early at intersection %d", i)
		}
		s.Done(step)
	}
	step := s.Arrive()
	if !step.Finished || step.Passed != 4 {
		t.Errorf("4th step = %+v, want finished at 4", step)
	}
	s.Done(step)
	if s.State() != Finished {
		t.Errorf("state = %v, want FINISHED", s.State())
	}
}

func TestSequencer_FixedCountPickupOnLastIntersection(t *testing.T) {
	plan, _ := NewPlan("Red Line", 3, 3, nil)
	s := NewSequencer(plan)

	steps := runUntilFinished(s, 10)
	last := steps[len(steps)-1]
	if len(steps) != 3 || last.Kind != StepPickup || !last.Finished {
		t.Errorf("steps = %+v, want run to end on pickup at 3", steps)
	}
}

func TestSequencer_OverrunResolvesToStop(t *testing.T) {
	// Pause never finishes the run, so extra intersections overrun the
	// sequence and must all resolve to stop.
	plan := Plan{Route: "loop", StopAt: 1, Total: 2, Actions: []Action{Pause}}
	s := NewSequencer(plan)

	s.Done(s.Arrive()) // pickup
	s.Done(s.Arrive()) // pause
	for i := 0; i < 3; i++ {
		step := s.Arrive()
		if step.Kind != StepAction || step.Action != Stop || !step.Finished {
			t.Errorf("overrun step %d = %+v, want stop", i, step)
		}
	}
}

func TestSequencer_UnknownActionDoesNotFinish(t *testing.T) {
	plan := Plan{Route: "odd", StopAt: 1, Actions: []Action{"hop", Stop}}
	s := NewSequencer(plan)

	s.Done(s.Arrive())
	step := s.Arrive()
	if step.Action != "hop" || step.Finished {
		t.Errorf("step = %+v, want unfinished unknown action", step)
	}
}

func TestSequencer_StateTransitions(t *testing.T) {
	plan, _ := NewPlan("Red", 1, 2, nil)
	s := NewSequencer(plan)
	if s.State() != Tracking {
		t.Fatalf("initial state = %v", s.State())
	}
	step := s.Arrive()
	if s.State() != Deciding {
		t.Errorf("state after Arrive = %v, want DECIDING", s.State())
	}
	s.Done(step)
	if s.State() != Tracking {
		t.Errorf("state after Done = %v, want TRACKING", s.State())
	}
	s.Finish()
	if s.State() != Finished {
		t.Errorf("state after Finish = %v", s.State())
	}
	if step := s.Arrive(); !step.Finished {
		t.Error("Arrive after finish should report finished")
	}
}

func TestState_String(t *testing.T) {
	if Tracking.String() != "TRACKING" || State(42).String() != "State(42)" {
		t.Error("unexpected State strings")
	}
	if StepPickup.String() != "pickup" || StepKind(9).String() != "StepKind(9)" {
		t.Error("unexpected StepKind strings")
	}
}
