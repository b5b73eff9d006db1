// Package dispatch decides when and which route to run: it polls passenger
// demand, waits for the threshold or the start button, then runs the route
// and records the outcome. At most one route runs at a time.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/LineGo/internal/debug"
	"github.com/cjeanneret/LineGo/internal/demand"
	"github.com/cjeanneret/LineGo/internal/logic/navigation"
	"github.com/cjeanneret/LineGo/internal/logic/route"
	"github.com/cjeanneret/LineGo/internal/status"
	"github.com/cjeanneret/LineGo/internal/store"
)

// ErrBusy is returned when a route is already running.
var ErrBusy = errors.New("a route is already running")

// DemandSource is the ride-request counter service.
type DemandSource interface {
	Fetch(ctx context.Context) ([]demand.Route, error)
	Reset(ctx context.Context, index int) error
}

// RouteRunner executes one route.
type RouteRunner interface {
	Run(ctx context.Context, plan route.Plan) (navigation.Result, error)
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, run store.Run) (store.Run, error)
}

// StatusBoard receives the waiting screen and the announcements.
type StatusBoard interface {
	Publish(label string, passed, total int, route string)
	PublishWaiting(demand []status.Demand, threshold, leader int)
	PublishError()
}

// Presser is an edge-triggered button.
type Presser interface {
	Pressed() bool
}

// Config holds the route and timing parameters.
type Config struct {
	StopAt     int
	Total      int // used for routes without a sequence
	Table      route.Table
	Threshold  int
	NameMaxLen int
	Refresh    time.Duration // demand polling period
	ButtonPoll time.Duration // start button polling period while waiting
	StartDelay time.Duration // announcement before a run
	Cooldown   time.Duration // pause after a run
}

// Deps are the collaborators of a dispatcher. Demand, Start and Recorder
// may be nil.
type Deps struct {
	Runner   RouteRunner
	Status   StatusBoard
	Demand   DemandSource
	Start    Presser
	Recorder Recorder
}

// Selection is the route picked from the demand list.
type Selection struct {
	Name     string
	Index    int
	HasIndex bool
	Manual   bool
}

// Dispatcher serializes route runs.
type Dispatcher struct {
	cfg  Config
	deps Deps

	mu       sync.Mutex // held for the duration of a run
	screenMu sync.Mutex // orders idle screens against run start
	busy     atomic.Bool
}

func New(cfg Config, deps Deps) *Dispatcher {
	if cfg.ButtonPoll <= 0 {
		cfg.ButtonPoll = 50 * time.Millisecond
	}
	return &Dispatcher{cfg: cfg, deps: deps}
}

// Busy reports whether a route is running.
func (d *Dispatcher) Busy() bool {
	return d.busy.Load()
}

// RunSelection runs the named route now. It returns ErrBusy if another run
// is in progress.
func (d *Dispatcher) RunSelection(ctx context.Context, name string) (navigation.Result, error) {
	if !d.acquire() {
		return navigation.Result{}, ErrBusy
	}
	defer d.release()
	return d.run(ctx, name)
}

// Serve waits for demand, runs the selected route, and repeats until ctx is
// cancelled.
func (d *Dispatcher) Serve(ctx context.Context) error {
	if d.deps.Demand == nil {
		return fmt.Errorf("dispatch: no demand source configured")
	}
	debug.Info("Waiting for passengers (threshold %d)", d.cfg.Threshold)

	for {
		sel, err := d.WaitForRoute(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !d.acquire() {
			debug.Info("Route %q not started: %v", sel.Name, ErrBusy)
			continue
		}
		err = d.serveSelection(ctx, sel)
		d.release()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			debug.Error(err)
		}

		if err := sleep(ctx, d.cfg.Cooldown); err != nil {
			return nil
		}
	}
}

func (d *Dispatcher) serveSelection(ctx context.Context, sel Selection) error {
	d.deps.Status.Publish("Starting "+sel.Name, 0, 0, sel.Name)
	debug.Info("Starting %s", sel.Name)
	if err := sleep(ctx, d.cfg.StartDelay); err != nil {
		return err
	}

	if sel.HasIndex {
		if err := d.deps.Demand.Reset(ctx, sel.Index); err != nil {
			debug.Info("Reset of route %d failed: %v", sel.Index, err)
		}
	}

	_, err := d.run(ctx, sel.Name)
	return err
}

// WaitForRoute polls demand until a route reaches the threshold or the
// start button is pressed while a leader exists.
func (d *Dispatcher) WaitForRoute(ctx context.Context) (Selection, error) {
	for {
		routes, err := d.deps.Demand.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Selection{}, ctx.Err()
			}
			debug.Live("Demand poll failed: %v", err)
			d.publishIdle(d.deps.Status.PublishError)
		} else {
			leader := demand.Leader(routes)
			d.publishIdle(func() {
				d.deps.Status.PublishWaiting(d.demandRows(routes), d.cfg.Threshold, leader)
			})
			if leader >= 0 && !d.Busy() && demand.ThresholdReached(routes, d.cfg.Threshold) {
				return d.selection(routes[leader], false), nil
			}
		}

		pressed, err := d.waitRefresh(ctx)
		if err != nil {
			return Selection{}, err
		}
		if pressed && !d.Busy() {
			if sel, ok := d.manualStart(ctx); ok {
				if err := sleep(ctx, d.cfg.StartDelay); err != nil {
					return Selection{}, err
				}
				return sel, nil
			}
		}
	}
}

// manualStart re-reads demand so the leader is current at the press.
func (d *Dispatcher) manualStart(ctx context.Context) (Selection, bool) {
	routes, err := d.deps.Demand.Fetch(ctx)
	if err != nil {
		debug.Live("Demand poll failed: %v", err)
		return Selection{}, false
	}
	leader := demand.Leader(routes)
	if leader < 0 {
		return Selection{}, false
	}
	d.deps.Status.Publish(fmt.Sprintf("Manual start in %s...", d.cfg.StartDelay.Round(time.Second/10)), 0, 0, "")
	return d.selection(routes[leader], true), true
}

// waitRefresh sleeps one refresh period while polling the start button.
func (d *Dispatcher) waitRefresh(ctx context.Context) (bool, error) {
	deadline := time.NewTimer(d.cfg.Refresh)
	defer deadline.Stop()
	if d.deps.Start == nil {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		}
	}

	poll := time.NewTicker(d.cfg.ButtonPoll)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-poll.C:
			if d.deps.Start.Pressed() {
				return true, nil
			}
		}
	}
}

func (d *Dispatcher) selection(r demand.Route, manual bool) Selection {
	idx, ok := r.ResetIndex()
	return Selection{
		Name:     demand.DisplayName(r, d.cfg.NameMaxLen),
		Index:    idx,
		HasIndex: ok,
		Manual:   manual,
	}
}

func (d *Dispatcher) demandRows(routes []demand.Route) []status.Demand {
	rows := make([]status.Demand, 0, len(routes))
	for _, r := range routes {
		rows = append(rows, status.Demand{Name: demand.DisplayName(r, d.cfg.NameMaxLen), Count: r.Count})
	}
	return rows
}

func (d *Dispatcher) acquire() bool {
	if !d.mu.TryLock() {
		return false
	}
	d.screenMu.Lock()
	d.busy.Store(true)
	d.screenMu.Unlock()
	return true
}

func (d *Dispatcher) release() {
	d.busy.Store(false)
	d.mu.Unlock()
}

// publishIdle shows an idle screen unless a run holds the board. A run that
// starts meanwhile waits for the publish, so its own screens come after.
func (d *Dispatcher) publishIdle(publish func()) {
	d.screenMu.Lock()
	defer d.screenMu.Unlock()
	if d.busy.Load() {
		return
	}
	publish()
}

// run executes and records one route. The caller holds the run lock.
func (d *Dispatcher) run(ctx context.Context, name string) (navigation.Result, error) {
	plan, err := route.NewPlan(name, d.cfg.StopAt, d.cfg.Total, d.cfg.Table)
	if err != nil {
		return navigation.Result{}, err
	}

	res, runErr := d.deps.Runner.Run(ctx, plan)

	if d.deps.Recorder != nil {
		rec := store.Run{
			Route:         plan.Route,
			StopAt:        plan.StopAt,
			Total:         plan.Total,
			Intersections: res.IntersectionsPassed,
			Outcome:       string(res.Outcome),
			StartedAt:     res.StartedAt,
			FinishedAt:    res.FinishedAt,
		}
		if runErr != nil {
			rec.Error = runErr.Error()
		}
		// Recording outlives a cancelled run context.
		if _, err := d.deps.Recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
			debug.Error(fmt.Errorf("record run: %w", err))
		}
	}
	return res, runErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
