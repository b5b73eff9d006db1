package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cjeanneret/LineGo/internal/logic/calibration"
	"github.com/cjeanneret/LineGo/internal/logic/linetrack"
	"github.com/cjeanneret/LineGo/internal/logic/motion"
	"github.com/cjeanneret/LineGo/internal/logic/route"
)

var (
	light = [2]int{70, 70}
	dark  = [2]int{8, 8}
)

// traceTrack replays (left, right) samples, one pair per tick. The right
// sensor read advances the cursor; the last sample repeats forever.
type traceTrack struct {
	samples [][2]int
	i       int
	reads   int
	failAt  int // tick at which the left sensor fails; 0 = never
}

type traceSensor struct {
	t    *traceTrack
	side int
}

func (s traceSensor) ReadRaw() (int, error) {
	t := s.t
	if s.side == 0 {
		t.reads++
		if t.failAt > 0 && t.reads == t.failAt {
			return 0, errors.New("sensor unplugged")
		}
	}
	v := t.samples[t.i][s.side]
	if s.side == 1 && t.i < len(t.samples)-1 {
		t.i++
	}
	return v, nil
}

func (t *traceTrack) sensors() (Sensor, Sensor) {
	return traceSensor{t: t, side: 0}, traceSensor{t: t, side: 1}
}

// dips builds a trace with n separated intersections, each dark for width ticks.
func dips(n, width int) [][2]int {
	var out [][2]int
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			out = append(out, light)
		}
		for j := 0; j < width; j++ {
			out = append(out, dark)
		}
	}
	for j := 0; j < 3; j++ {
		out = append(out, light)
	}
	return out
}

// recordingActuator records scripted maneuvers and brakes; continuous drive
// commands are only counted.
type recordingActuator struct {
	calls  []string
	drives int
	failOn string
}

func (a *recordingActuator) DriveContinuous(left, right float64) error {
	a.drives++
	return nil
}

func (a *recordingActuator) DriveDegrees(left, right, degrees float64) error {
	c := fmt.Sprintf("deg %.0f/%.0f %.0f", left, right, degrees)
	a.calls = append(a.calls, c)
	if c == a.failOn {
		return errors.New("stall")
	}
	return nil
}

func (a *recordingActuator) Brake() error {
	a.calls = append(a.calls, "brake")
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	labels []string
	last   [2]int
}

func (s *recordingSink) Publish(label string, passed, total int, route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, label)
	s.last = [2]int{passed, total}
}

// cancelAfter requests cancellation once polled n times.
type cancelAfter struct {
	n, polls int
}

func (c *cancelAfter) CancelRequested() bool {
	c.polls++
	return c.n > 0 && c.polls > c.n
}

var testConfig = Config{
	Calibration: calibration.Calibration{
		Left:  calibration.NewBounds(8, 70),
		Right: calibration.NewBounds(8, 70),
	},
	Tracking: linetrack.Config{Kp: 0.2, BaseSpeed: 30, MaxSpeed: 90},
	Maneuvers: route.Maneuvers{
		BaseSpeed:         30,
		TurnSpeed:         25,
		TurnDegrees:       180,
		UTurnDegrees:      360,
		PassDegrees:       100,
		BeforeTurnDegrees: 90,
		FinalDegrees:      370,
	},
	StartExitDegrees: 300,
}

func newTestRunner(track *traceTrack, cancel Canceller) (*Runner, *recordingActuator, *recordingSink) {
	act := &recordingActuator{}
	sink := &recordingSink{}
	left, right := track.sensors()
	r := NewRunner(left, right, motion.NewController(act), cancel, sink, testConfig)
	return r, act, sink
}

func TestRun_BlueExpress(t *testing.T) {
	track := &traceTrack{samples: dips(12, 4)}
	r, act, sink := newTestRunner(track, nil)

	plan, err := route.NewPlan("Blue Express", 2, 0, route.DefaultTable())
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Outcome != OutcomeFinished || res.IntersectionsPassed != 9 || res.Total != 9 {
		t.Errorf("result = %+v, want finished at 9/9", res)
	}

	want := []string{
		"deg 30/30 300", // start zone exit
		"deg 30/30 100", // #1 pass-through
		"brake",         // #2 pickup
		"deg 30/30 100",
		"deg 30/30 90", "deg -25/25 180", // #3 left
		"deg 30/30 90", "deg 25/-25 180", // #4 right
		"deg 30/30 90", "deg -25/25 360", // #5 u-turn
		"deg 30/30 90", "deg -25/25 180", // #6 left
		"deg 30/30 90", "deg 25/-25 180", // #7 right
		"deg 30/30 100", // #8 straight
		"deg 30/30 370", "deg -25/25 370", "brake", // #9 stop
		"brake", // run end
	}
	if diff := cmp.Diff(want, act.calls); diff != "" {
		t.Errorf("maneuvers mismatch (-want +got):\n%s", diff)
	}
	if act.drives == 0 {
		t.Error("expected continuous tracking commands between intersections")
	}
	if got := sink.labels[len(sink.labels)-1]; got != "Finished" {
		t.Errorf("last label = %q, want Finished", got)
	}
	if sink.last != [2]int{9, 9} {
		t.Errorf("last published count = %v, want [9 9]", sink.last)
	}
}

func TestRun_FixedCountEndsAtTotal(t *testing.T) {
	track := &traceTrack{samples: dips(6, 3)}
	r, act, _ := newTestRunner(track, nil)

	plan, err := route.NewPlan("Red Line", 2, 4, route.DefaultTable())
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != OutcomeFinished || res.IntersectionsPassed != 4 {
		t.Errorf("result = %+v, want finished at exactly 4", res)
	}
	if act.calls[len(act.calls)-1] != "brake" {
		t.Errorf("run must end braked, calls = %v", act.calls)
	}
}

func TestRun_OverrunResolvesToStop(t *testing.T) {
	track := &traceTrack{samples: dips(5, 2)}
	r, act, _ := newTestRunner(track, nil)

	plan := route.Plan{Route: "loop", StopAt: 1, Total: 2, Actions: []route.Action{route.Pause}}
	res, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != OutcomeFinished || res.IntersectionsPassed != 3 {
		t.Errorf("result = %+v, want finished at 3 (pickup, pause, overrun stop)", res)
	}
	tail := act.calls[len(act.calls)-4:]
	if diff := cmp.Diff([]string{"deg 30/30 370", "deg -25/25 370", "brake", "brake"}, tail); diff != "" {
		t.Errorf("overrun should stop (-want +got):\n%s", diff)
	}
}

func TestRun_ResultCountMatchesPublishedCount(t *testing.T) {
	samples := dips(3, 2)
	track := &traceTrack{samples: samples}
	r, _, sink := newTestRunner(track, &cancelAfter{n: len(samples) + 5})

	plan, err := route.NewPlan("Blue Express", 1, 0, route.DefaultTable())
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != OutcomeCancelled || res.IntersectionsPassed != 3 {
		t.Errorf("result = %+v, want cancelled after 3", res)
	}
	if sink.last[0] != res.IntersectionsPassed {
		t.Errorf("published %d intersections, result says %d", sink.last[0], res.IntersectionsPassed)
	}
}

func TestRun_CancelBrakesAndExits(t *testing.T) {
	track := &traceTrack{samples: [][2]int{light}}
	r, act, sink := newTestRunner(track, &cancelAfter{n: 5})

	plan, _ := route.NewPlan("Red", 1, 3, nil)
	res, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != OutcomeCancelled {
		t.Errorf("outcome = %v, want cancelled", res.Outcome)
	}
	if act.drives != 5 {
		t.Errorf("drives = %d, want 5 ticks before cancel", act.drives)
	}
	if act.calls[len(act.calls)-1] != "brake" {
		t.Error("cancel must brake")
	}
	if got := sink.labels[len(sink.labels)-1]; got != "Cancelled by user" {
		t.Errorf("last label = %q", got)
	}
}

func TestRun_StartingOnIntersectionCountsOnce(t *testing.T) {
	// Sensors dark for the whole run: the first dark poll after the start
	// exit counts once, then nothing more without a recovery edge.
	track := &traceTrack{samples: [][2]int{dark}}
	r, act, _ := newTestRunner(track, &cancelAfter{n: 50})

	plan, _ := route.NewPlan("Red", 3, 5, nil)
	res, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.IntersectionsPassed != 1 {
		t.Errorf("passed = %d, want 1", res.IntersectionsPassed)
	}
	if act.calls[0] != "deg 30/30 300" {
		t.Errorf("first maneuver = %q, want start zone exit", act.calls[0])
	}
}

func TestRun_SensorFaultAborts(t *testing.T) {
	track := &traceTrack{samples: dips(3, 2), failAt: 4}
	r, act, sink := newTestRunner(track, nil)

	plan, _ := route.NewPlan("Red", 1, 3, nil)
	res, err := r.Run(context.Background(), plan)
	if !errors.Is(err, ErrHardware) {
		t.Fatalf("err = %v, want ErrHardware", err)
	}
	if res.Outcome != OutcomeAborted {
		t.Errorf("outcome = %v, want aborted", res.Outcome)
	}
	if act.calls[len(act.calls)-1] != "brake" {
		t.Error("fault must brake")
	}
	if got := sink.labels[len(sink.labels)-1]; got != "Hardware fault" {
		t.Errorf("last label = %q", got)
	}
}

func TestRun_ManeuverFaultAborts(t *testing.T) {
	track := &traceTrack{samples: dips(3, 2)}
	r, act, _ := newTestRunner(track, nil)
	act.failOn = "deg 30/30 100"

	plan, _ := route.NewPlan("Red", 2, 3, nil)
	res, err := r.Run(context.Background(), plan)
	if !errors.Is(err, ErrHardware) {
		t.Fatalf("err = %v, want ErrHardware", err)
	}
	if res.IntersectionsPassed != 1 {
		t.Errorf("passed = %d, want 1", res.IntersectionsPassed)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	track := &traceTrack{samples: [][2]int{light}}
	r, act, _ := newTestRunner(track, nil)

	plan, _ := route.NewPlan("Red", 1, 3, nil)
	res, err := r.Run(ctx, plan)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Outcome != OutcomeCancelled {
		t.Errorf("outcome = %v", res.Outcome)
	}
	if act.calls[len(act.calls)-1] != "brake" {
		t.Error("context cancel must brake")
	}
}
