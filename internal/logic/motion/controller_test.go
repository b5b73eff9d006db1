package motion

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// recordingActuator records actuator calls for verification.
type recordingActuator struct {
	calls []call
	err   error
}

type call struct {
	Op          string
	Left, Right float64
	Degrees     float64
}

func (a *recordingActuator) DriveContinuous(left, right float64) error {
	a.calls = append(a.calls, call{Op: "drive", Left: left, Right: right})
	return a.err
}

func (a *recordingActuator) DriveDegrees(left, right, degrees float64) error {
	a.calls = append(a.calls, call{Op: "degrees", Left: left, Right: right, Degrees: degrees})
	return a.err
}

func (a *recordingActuator) Brake() error {
	a.calls = append(a.calls, call{Op: "brake"})
	return a.err
}

func TestController_Drive(t *testing.T) {
	act := &recordingActuator{}
	ctrl := NewController(act)

	if err := ctrl.Drive(20, 40); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	want := []call{{Op: "drive", Left: 20, Right: 40}}
	if diff := cmp.Diff(want, act.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestController_Maneuvers(t *testing.T) {
	act := &recordingActuator{}
	ctrl := NewController(act)

	if err := ctrl.Forward(30, 100); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if err := ctrl.Pivot(Left, 25, 180); err != nil {
		t.Fatalf("Pivot left: %v", err)
	}
	if err := ctrl.Pivot(Right, 25, 180); err != nil {
		t.Fatalf("Pivot right: %v", err)
	}
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []call{
		{Op: "degrees", Left: 30, Right: 30, Degrees: 100},
		{Op: "degrees", Left: -25, Right: 25, Degrees: 180},
		{Op: "degrees", Left: 25, Right: -25, Degrees: 180},
		{Op: "brake"},
	}
	if diff := cmp.Diff(want, act.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestController_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	ctrl := NewController(&recordingActuator{err: boom})

	if err := ctrl.Drive(1, 1); !errors.Is(err, boom) {
		t.Errorf("Drive err = %v, want boom", err)
	}
	if err := ctrl.DriveByDistance(1, 1, 10); !errors.Is(err, boom) {
		t.Errorf("DriveByDistance err = %v, want boom", err)
	}
	if err := ctrl.Stop(); !errors.Is(err, boom) {
		t.Errorf("Stop err = %v, want boom", err)
	}
}

func TestDirection_String(t *testing.T) {
	if Left.String() != "left" || Right.String() != "right" {
		t.Errorf("got %q/%q", Left.String(), Right.String())
	}
}
