package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/LineGo/internal/config"
	"github.com/cjeanneret/LineGo/internal/debug"
	"github.com/cjeanneret/LineGo/internal/demand"
	"github.com/cjeanneret/LineGo/internal/dispatch"
	"github.com/cjeanneret/LineGo/internal/hw/board"
	"github.com/cjeanneret/LineGo/internal/hw/button"
	"github.com/cjeanneret/LineGo/internal/hw/gpio"
	"github.com/cjeanneret/LineGo/internal/hw/sim"
	"github.com/cjeanneret/LineGo/internal/logic/calibration"
	"github.com/cjeanneret/LineGo/internal/logic/motion"
	"github.com/cjeanneret/LineGo/internal/logic/navigation"
	"github.com/cjeanneret/LineGo/internal/logic/route"
	"github.com/cjeanneret/LineGo/internal/status"
	"github.com/cjeanneret/LineGo/internal/store"
	"github.com/cjeanneret/LineGo/internal/web"
)

// simIntersections is the length of the simulated course; runs end on their
// own count long before it.
const simIntersections = 64

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	calibrate := flag.Bool("calibrate", false, "capture sensor calibration and print the sensors: YAML block")
	routeName := flag.String("route", "", "run this route once and exit")
	stopAt := flag.Int("stop_at", 0, "override the pickup intersection (1-99)")
	total := flag.Int("total", 0, "override the intersection count of unscripted routes (1-99)")
	flag.Parse()

	// Runs after every other deferred call, so the motors are braked and the
	// ports closed before a failing exit status is reported.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied; zero means "use config default")
	if err := validateCLIOverrides(*routeName, *stopAt, *total); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, *stopAt, *total)
	if cfg.Routes.TotalIntersections < cfg.Routes.StopAt {
		log.Fatalf("invalid CLI override: total (%d) must be >= stop_at (%d)", cfg.Routes.TotalIntersections, cfg.Routes.StopAt)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	for _, a := range cfg.UnknownActions() {
		debug.Info("Unknown route action %q runs as straight", a)
	}
	for _, side := range cfg.DegenerateSensors() {
		debug.Info("Sensor %s has black == white; its reading is always 0, run -calibrate", side)
	}

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Hardware.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Hardware.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()
	buttons := newButtons(gpioDriver, cfg)

	// Initialize sensors and motors
	debug.Step(2, "Initializing "+cfg.Hardware.Backend+" backend")
	hw, err := openBackend(cfg)
	if err != nil {
		log.Fatalf("init hardware failed: %v", err)
	}
	defer func() {
		if err := hw.close(); err != nil {
			log.Printf("closing hardware failed: %v", err)
		}
	}()

	if *calibrate {
		if err := runCalibration(ctx, cfg, hw, buttons, os.Stdin, os.Stdout); err != nil {
			log.Fatalf("calibration failed: %v", err)
		}
		return
	}

	debug.Step(3, "Initializing status board")
	var demandClient *demand.Client
	host := "local"
	if cfg.Demand.URL != "" {
		demandClient = demand.NewClient(nil, cfg.Demand.URL)
		demandClient.HTTPClient.Timeout = cfg.DemandTimeout()
		host = demandClient.Host()
	}
	statusBoard := status.NewBoard(host)
	renderers := []status.Renderer{status.NewTextRenderer(os.Stdout)}

	var broadcaster *web.StatusBroadcaster
	if webPort.port() > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		renderers = append(renderers, broadcaster)
	}
	reporter := status.NewReporter(statusBoard, cfg.StatusRefresh(), renderers...)

	var history *store.Store
	if cfg.Store.Path != "" {
		debug.Step(4, "Opening run history")
		history, err = store.Open(cfg.Store.Path)
		if err != nil {
			log.Fatalf("open run history failed: %v", err)
		}
		defer history.Close()
	}

	debug.Step(5, "Creating control loop and dispatcher")
	runner := navigation.NewRunner(hw.left, hw.right, motion.NewController(hw.act), buttons.cancel, statusBoard, navigation.Config{
		Calibration:      cfg.Calibration(),
		Tracking:         cfg.TrackingLaw(),
		Maneuvers:        cfg.RouteManeuvers(),
		StartExitDegrees: cfg.Maneuvers.StartExitDegrees,
		Tick:             cfg.Tick(),
	})
	debug.PrintStruct("Calibration", cfg.Calibration())
	debug.PrintStruct("Tracking", cfg.TrackingLaw())

	deps := dispatch.Deps{
		Runner: &courseRunner{runner: runner, track: hw.track},
		Status: statusBoard,
		Start:  buttons.start,
	}
	if demandClient != nil {
		deps.Demand = demandClient
	}
	if history != nil {
		deps.Recorder = history
	}
	dispatcher := dispatch.New(dispatch.Config{
		StopAt:     cfg.Routes.StopAt,
		Total:      cfg.Routes.TotalIntersections,
		Table:      cfg.RouteTable(),
		Threshold:  cfg.Demand.Threshold,
		NameMaxLen: cfg.Demand.NameMaxLen,
		Refresh:    cfg.DemandRefresh(),
		StartDelay: cfg.StartDelay(),
		Cooldown:   cfg.Cooldown(),
	}, deps)

	var wg sync.WaitGroup
	reporterCtx, stopReporter := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reporter.Run(reporterCtx)
	}()
	defer func() {
		stopReporter()
		wg.Wait()
		reporter.Flush()
	}()

	if *routeName != "" {
		debug.Section("Running route " + *routeName)
		exitCode = runOnce(ctx, dispatcher, *routeName)
		return
	}

	if demandClient == nil && webPort.port() == 0 {
		log.Fatalf("nothing to do: set demand.url in the config, or use -web or -route")
	}

	errCh := make(chan error, 2)
	var services sync.WaitGroup
	if demandClient != nil {
		services.Add(1)
		go func() {
			defer services.Done()
			errCh <- dispatcher.Serve(ctx)
		}()
	}
	if port := webPort.port(); port > 0 {
		var hist web.RunHistory
		if history != nil {
			hist = history
		}
		srv := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, dispatcher, statusBoard, hist, web.FormConfig{
			Routes:             cfg.RouteTable().Keys(),
			StopAt:             cfg.Routes.StopAt,
			TotalIntersections: cfg.Routes.TotalIntersections,
			Threshold:          cfg.Demand.Threshold,
		})
		services.Add(1)
		go func() {
			defer services.Done()
			errCh <- srv.Run(ctx)
		}()
	}

	go func() {
		services.Wait()
		close(errCh)
	}()
	for err := range errCh {
		if err != nil {
			log.Printf("service stopped: %v", err)
			cancel()
		}
	}
}

// selectionRunner runs one named route.
type selectionRunner interface {
	RunSelection(ctx context.Context, name string) (navigation.Result, error)
}

// runOnce runs a single route and returns the process exit status: 0 when
// the route finished or was cancelled by the operator, 1 otherwise.
func runOnce(ctx context.Context, r selectionRunner, name string) int {
	res, err := r.RunSelection(ctx, name)
	if err != nil && res.Outcome != navigation.OutcomeCancelled {
		log.Printf("route %q: %v", name, err)
		return 1
	}
	debug.Summary(fmt.Sprintf("Route %s %s: %d/%d intersections", res.Route, res.Outcome, res.IntersectionsPassed, res.Total))
	if res.Outcome == navigation.OutcomeAborted {
		return 1
	}
	return 0
}

// courseRunner puts the simulated robot back at the start before each run.
type courseRunner struct {
	runner dispatch.RouteRunner
	track  *sim.Track
}

func (c *courseRunner) Run(ctx context.Context, plan route.Plan) (navigation.Result, error) {
	if c.track != nil {
		c.track.Reset()
	}
	return c.runner.Run(ctx, plan)
}

// hardware is the selected sensor/motor backend.
type hardware struct {
	left, right navigation.Sensor
	act         motion.Actuator
	track       *sim.Track // mock backend only
	close       func() error
}

func openBackend(cfg *config.Config) (*hardware, error) {
	switch cfg.Hardware.Backend {
	case config.BackendSerial:
		b, err := board.Open(cfg.Hardware.Serial.Port, cfg.Hardware.Serial.PortOptions)
		if err != nil {
			return nil, err
		}
		return &hardware{left: b.Left(), right: b.Right(), act: b, close: b.Close}, nil
	case config.BackendMock:
		layout := sim.DefaultLayout(simIntersections)
		cal := cfg.Calibration()
		layout.Black, layout.White = cal.Left.Black, cal.Left.White
		t := sim.NewTrack(layout)
		return &hardware{left: t.Left(), right: t.Right(), act: t, track: t, close: func() error { return nil }}, nil
	default:
		return nil, fmt.Errorf("unsupported hardware backend: %s", cfg.Hardware.Backend)
	}
}

// buttonSet holds the configured operator buttons; unset pins stay nil.
type buttonSet struct {
	cancel  navigation.Canceller
	start   dispatch.Presser
	confirm calibration.Presser
}

func newButtons(g gpio.Driver, cfg *config.Config) buttonSet {
	var set buttonSet
	activeLow := cfg.ButtonsActiveLow()
	if pin := cfg.Hardware.CancelButtonPin; pin > 0 {
		set.cancel = button.New(g, pin, activeLow)
		debug.Value("Cancel button pin", pin)
	}
	if pin := cfg.Hardware.StartButtonPin; pin > 0 {
		set.start = button.New(g, pin, activeLow)
		debug.Value("Start button pin", pin)
	}
	if pin := cfg.Hardware.ConfirmButtonPin; pin > 0 {
		set.confirm = button.New(g, pin, activeLow)
		debug.Value("Confirm button pin", pin)
	}
	return set
}

// runCalibration captures both sensors and prints the sensors: block. Without
// a confirm button, Enter on in confirms each step.
func runCalibration(ctx context.Context, cfg *config.Config, hw *hardware, buttons buttonSet, in io.Reader, out io.Writer) error {
	c := &calibration.Capturer{
		Left:    hw.left,
		Right:   hw.right,
		Confirm: buttons.confirm,
		Samples: cfg.Sensors.CalibrationSamples,
		Prompt: func(lines ...string) {
			fmt.Fprintln(out, strings.Join(lines, "\n"))
		},
	}
	if p, ok := buttons.cancel.(calibration.Presser); ok {
		c.Back = p
	}
	if c.Confirm == nil {
		c.Confirm = newLinePresser(in)
	}

	cal, err := c.Run(ctx)
	if err != nil {
		return err
	}
	return writeSensorsYAML(out, cal, cfg.Sensors.CalibrationSamples)
}

func writeSensorsYAML(w io.Writer, cal calibration.Calibration, samples int) error {
	data, err := yaml.Marshal(map[string]config.SensorsConfig{
		"sensors": {Left: cal.Left, Right: cal.Right, CalibrationSamples: samples},
	})
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// linePresser reports one press per line read from r.
type linePresser struct {
	pending atomic.Int32
}

func newLinePresser(r io.Reader) *linePresser {
	p := &linePresser{}
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			p.pending.Add(1)
		}
	}()
	return p
}

func (p *linePresser) Pressed() bool {
	for {
		n := p.pending.Load()
		if n <= 0 {
			return false
		}
		if p.pending.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(routeName string, stopAt, total int) error {
	if routeName != "" {
		if err := web.ValidateRunRequest(web.RunRequest{Route: routeName}); err != nil {
			return fmt.Errorf("route: %w", err)
		}
	}
	if stopAt != 0 && (stopAt < 1 || stopAt > 99) {
		return fmt.Errorf("stop_at must be between 1 and 99, got %d", stopAt)
	}
	if total != 0 && (total < 1 || total > 99) {
		return fmt.Errorf("total must be between 1 and 99, got %d", total)
	}
	if stopAt != 0 && total != 0 && total < stopAt {
		return errors.New("total must be >= stop_at")
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, stopAt, total int) {
	if stopAt > 0 {
		cfg.Routes.StopAt = stopAt
	}
	if total > 0 {
		cfg.Routes.TotalIntersections = total
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
