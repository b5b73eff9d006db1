package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/LineGo/internal/hw/board"
	"github.com/cjeanneret/LineGo/internal/logic/calibration"
	"github.com/cjeanneret/LineGo/internal/logic/linetrack"
	"github.com/cjeanneret/LineGo/internal/logic/route"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// Hardware backends.
const (
	BackendMock   = "mock"   // simulated track, no controller board
	BackendSerial = "serial" // controller board on a serial port
)

// SerialConfig selects the serial port of the controller board.
type SerialConfig struct {
	Port              string `yaml:"port"` // e.g., "/dev/ttyACM0"
	board.PortOptions `yaml:",inline"`
}

// HardwareConfig describes how the Raspberry Pi reaches sensors, motors and buttons.
type HardwareConfig struct {
	Backend          string       `yaml:"backend"`            // "mock" or "serial"
	MockGPIO         bool         `yaml:"mock_gpio"`          // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	Serial           SerialConfig `yaml:"serial"`             // required for backend "serial"
	CancelButtonPin  int          `yaml:"cancel_button_pin"`  // BCM pin. 0 = not used.
	StartButtonPin   int          `yaml:"start_button_pin"`   // BCM pin. 0 = not used.
	ConfirmButtonPin int          `yaml:"confirm_button_pin"` // BCM pin. 0 = not used.
	ButtonsActiveLow *bool        `yaml:"buttons_active_low"` // default true (pull-up wiring)
}

// SensorsConfig holds the per-sensor calibration.
type SensorsConfig struct {
	Left               calibration.Bounds `yaml:"left"`
	Right              calibration.Bounds `yaml:"right"`
	CalibrationSamples int                `yaml:"calibration_samples"` // readings averaged per capture
}

// TrackingConfig is the proportional line-following law.
type TrackingConfig struct {
	Kp        float64 `yaml:"kp"`
	BaseSpeed float64 `yaml:"base_speed"` // % of motor max
	MaxSpeed  float64 `yaml:"max_speed"`  // % of motor max
	TickMs    int     `yaml:"tick_ms"`    // control loop period
}

// ManeuversConfig holds the fixed drives of the course, in wheel degrees.
type ManeuversConfig struct {
	TurnSpeed         float64 `yaml:"turn_speed"`
	TurnDegrees       float64 `yaml:"turn_degrees"`
	UTurnDegrees      float64 `yaml:"uturn_degrees"`
	PassDegrees       float64 `yaml:"pass_degrees"`
	BeforeTurnDegrees float64 `yaml:"before_turn_degrees"`
	StartExitDegrees  float64 `yaml:"start_exit_degrees"`
	FinalDegrees      float64 `yaml:"final_degrees"`
	PickupDwellMs     int     `yaml:"pickup_dwell_ms"`
	PauseDwellMs      int     `yaml:"pause_dwell_ms"`
}

// SequenceConfig binds a route-name key to its post-pickup actions.
type SequenceConfig struct {
	Key     string   `yaml:"key"`
	Actions []string `yaml:"actions"`
}

// RoutesConfig holds the route parameters.
type RoutesConfig struct {
	StopAt             int              `yaml:"stop_at"`
	TotalIntersections int              `yaml:"total_intersections"` // used when no sequence matches
	Sequences          []SequenceConfig `yaml:"sequences"`           // ordered; first matching key wins
}

// DemandConfig describes the passenger-demand server.
type DemandConfig struct {
	URL          string `yaml:"url"` // e.g., "http://192.168.4.1"; empty = no dispatcher
	Threshold    int    `yaml:"threshold"`
	RefreshMs    int    `yaml:"refresh_ms"`
	TimeoutMs    int    `yaml:"timeout_ms"`
	NameMaxLen   int    `yaml:"name_max_len"`
	StartDelayMs int    `yaml:"start_delay_ms"` // announcement before a manual start
	CooldownMs   int    `yaml:"cooldown_ms"`    // pause after a run
}

// StatusConfig controls the status reporter.
type StatusConfig struct {
	RefreshMs int `yaml:"refresh_ms"`
}

// StoreConfig locates the run history database.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite file; empty = no history
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Hardware  HardwareConfig  `yaml:"hardware"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Maneuvers ManeuversConfig `yaml:"maneuvers"`
	Routes    RoutesConfig    `yaml:"routes"`
	Demand    DemandConfig    `yaml:"demand"`
	Status    StatusConfig    `yaml:"status"`
	Store     StoreConfig     `yaml:"store"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files located directly in a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if strings.Contains(filepath.ToSlash(path), "..") {
		return fmt.Errorf("config path %q must not contain ..", path)
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must end in .yaml", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be in a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	cfg := presets()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration of an empty file.
func Default() *Config {
	cfg := presets()
	cfg.applyDefaults()
	return &cfg
}

// presets holds the defaults that a file may set to zero on purpose. They are
// in place before decoding, so only absent keys keep them.
func presets() Config {
	var c Config
	c.Sensors.Left = calibration.NewBounds(8, 70)
	c.Sensors.Right = calibration.NewBounds(8, 70)
	return c
}

func (c *Config) applyDefaults() {
	if c.Hardware.Backend == "" {
		c.Hardware.Backend = BackendMock
	}

	if c.Sensors.CalibrationSamples <= 0 {
		c.Sensors.CalibrationSamples = 5
	}

	if c.Tracking.Kp == 0 {
		c.Tracking.Kp = 0.2
	}
	if c.Tracking.BaseSpeed == 0 {
		c.Tracking.BaseSpeed = 30
	}
	if c.Tracking.MaxSpeed == 0 {
		c.Tracking.MaxSpeed = 90
	}
	if c.Tracking.TickMs <= 0 {
		c.Tracking.TickMs = 10
	}

	m := &c.Maneuvers
	if m.TurnSpeed <= 0 {
		m.TurnSpeed = 25
	}
	if m.TurnDegrees <= 0 {
		m.TurnDegrees = 180
	}
	if m.UTurnDegrees <= 0 {
		m.UTurnDegrees = 360
	}
	if m.PassDegrees <= 0 {
		m.PassDegrees = 100
	}
	if m.BeforeTurnDegrees <= 0 {
		m.BeforeTurnDegrees = 100
	}
	if m.StartExitDegrees <= 0 {
		m.StartExitDegrees = 300
	}
	if m.FinalDegrees <= 0 {
		m.FinalDegrees = 370
	}
	if m.PickupDwellMs <= 0 {
		m.PickupDwellMs = 3000
	}
	if m.PauseDwellMs <= 0 {
		m.PauseDwellMs = 2000
	}

	if c.Routes.StopAt == 0 {
		c.Routes.StopAt = 1
	}
	if c.Routes.TotalIntersections == 0 {
		c.Routes.TotalIntersections = 3
	}
	if c.Routes.Sequences == nil {
		for _, def := range route.DefaultTable() {
			seq := SequenceConfig{Key: def.Key}
			for _, a := range def.Actions {
				seq.Actions = append(seq.Actions, string(a))
			}
			c.Routes.Sequences = append(c.Routes.Sequences, seq)
		}
	}

	d := &c.Demand
	if d.Threshold <= 0 {
		d.Threshold = 3
	}
	if d.RefreshMs <= 0 {
		d.RefreshMs = 1000
	}
	if d.TimeoutMs <= 0 {
		d.TimeoutMs = 2000
	}
	if d.NameMaxLen <= 0 {
		d.NameMaxLen = 15
	}
	if d.StartDelayMs <= 0 {
		d.StartDelayMs = 2000
	}
	if d.CooldownMs <= 0 {
		d.CooldownMs = 3000
	}

	if c.Status.RefreshMs <= 0 {
		c.Status.RefreshMs = 300
	}
}

// Validate checks the values that have no sensible default.
func (c *Config) Validate() error {
	switch c.Hardware.Backend {
	case BackendMock:
	case BackendSerial:
		if c.Hardware.Serial.Port == "" {
			return fmt.Errorf("hardware.serial.port is required for backend %q", BackendSerial)
		}
		if _, err := c.Hardware.Serial.Normalize(); err != nil {
			return fmt.Errorf("hardware.serial: %w", err)
		}
	default:
		return fmt.Errorf("unsupported hardware.backend: %s", c.Hardware.Backend)
	}

	if c.Tracking.Kp < 0 {
		return fmt.Errorf("tracking.kp must be >= 0, got %g", c.Tracking.Kp)
	}
	if c.Tracking.MaxSpeed <= 0 {
		return fmt.Errorf("tracking.max_speed must be > 0, got %g", c.Tracking.MaxSpeed)
	}
	if c.Tracking.BaseSpeed > c.Tracking.MaxSpeed {
		return fmt.Errorf("tracking.base_speed (%g) must be <= max_speed (%g)", c.Tracking.BaseSpeed, c.Tracking.MaxSpeed)
	}

	if c.Routes.StopAt < 1 {
		return fmt.Errorf("routes.stop_at must be >= 1, got %d", c.Routes.StopAt)
	}
	if c.Routes.TotalIntersections < c.Routes.StopAt {
		return fmt.Errorf("routes.total_intersections (%d) must be >= stop_at (%d)", c.Routes.TotalIntersections, c.Routes.StopAt)
	}
	for i, seq := range c.Routes.Sequences {
		if strings.TrimSpace(seq.Key) == "" {
			return fmt.Errorf("routes.sequences[%d]: key is required", i)
		}
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// UnknownActions lists "key: action" for every sequence symbol that is not a
// defined action. Such actions run as Straight.
func (c *Config) UnknownActions() []string {
	var out []string
	for _, seq := range c.Routes.Sequences {
		for _, s := range seq.Actions {
			if !route.ParseAction(s).Known() {
				out = append(out, seq.Key+": "+s)
			}
		}
	}
	return out
}

// DegenerateSensors names the sensors whose black and white readings are
// equal. Their normalized reading is always 0.
func (c *Config) DegenerateSensors() []string {
	var out []string
	cal := c.Calibration()
	if cal.Left.Degenerate() {
		out = append(out, "left")
	}
	if cal.Right.Degenerate() {
		out = append(out, "right")
	}
	return out
}

// RouteTable converts the configured sequences into a lookup table.
func (c *Config) RouteTable() route.Table {
	table := make(route.Table, 0, len(c.Routes.Sequences))
	for _, seq := range c.Routes.Sequences {
		def := route.Definition{Key: seq.Key}
		for _, s := range seq.Actions {
			def.Actions = append(def.Actions, route.ParseAction(s))
		}
		table = append(table, def)
	}
	return table
}

// Calibration returns the sensor calibration.
func (c *Config) Calibration() calibration.Calibration {
	return calibration.Calibration{
		Left:  calibration.NewBounds(c.Sensors.Left.Black, c.Sensors.Left.White),
		Right: calibration.NewBounds(c.Sensors.Right.Black, c.Sensors.Right.White),
	}
}

// TrackingLaw returns the line-tracker tuning.
func (c *Config) TrackingLaw() linetrack.Config {
	return linetrack.Config{
		Kp:        c.Tracking.Kp,
		BaseSpeed: c.Tracking.BaseSpeed,
		MaxSpeed:  c.Tracking.MaxSpeed,
	}
}

// RouteManeuvers returns the maneuver distances and dwell times.
func (c *Config) RouteManeuvers() route.Maneuvers {
	m := c.Maneuvers
	return route.Maneuvers{
		BaseSpeed:         c.Tracking.BaseSpeed,
		TurnSpeed:         m.TurnSpeed,
		TurnDegrees:       m.TurnDegrees,
		UTurnDegrees:      m.UTurnDegrees,
		PassDegrees:       m.PassDegrees,
		BeforeTurnDegrees: m.BeforeTurnDegrees,
		FinalDegrees:      m.FinalDegrees,
		PickupDwell:       ms(m.PickupDwellMs),
		PauseDwell:        ms(m.PauseDwellMs),
	}
}

// ButtonsActiveLow reports the button polarity.
func (c *Config) ButtonsActiveLow() bool {
	if c.Hardware.ButtonsActiveLow == nil {
		return true
	}
	return *c.Hardware.ButtonsActiveLow
}

// Tick returns the control loop period.
func (c *Config) Tick() time.Duration {
	return ms(c.Tracking.TickMs)
}

// DemandRefresh returns the demand polling period.
func (c *Config) DemandRefresh() time.Duration {
	return ms(c.Demand.RefreshMs)
}

// DemandTimeout returns the timeout of one demand request.
func (c *Config) DemandTimeout() time.Duration {
	return ms(c.Demand.TimeoutMs)
}

// StartDelay returns the announcement delay of a manual start.
func (c *Config) StartDelay() time.Duration {
	return ms(c.Demand.StartDelayMs)
}

// Cooldown returns the pause after a run.
func (c *Config) Cooldown() time.Duration {
	return ms(c.Demand.CooldownMs)
}

// StatusRefresh returns the status reporter period.
func (c *Config) StatusRefresh() time.Duration {
	return ms(c.Status.RefreshMs)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
