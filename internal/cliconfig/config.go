package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/panel-labs/paneld/internal/domain"
)

// DefaultBaud is the link speed the stock firmware clients assume.
const DefaultBaud = 115200

// Config is the resolved daemon configuration after flag, environment, and
// file merging.
type Config struct {
	// Device is the serial link device path. Ignored when Stdio is set.
	Device string
	Baud   int

	// Stdio runs the protocol over stdin/stdout instead of a serial device.
	Stdio bool

	// Simulate backs every panel with an in-memory framebuffer instead of
	// SPI hardware.
	Simulate bool

	// Timeout is the transfer inactivity limit.
	Timeout time.Duration

	// Watch re-applies panel calibration when the config file changes.
	Watch bool

	LogLevel string

	// ConfigPath records where the file config was loaded from; the
	// calibration watcher needs it.
	ConfigPath string

	Panels []Panel
}

// Panel is one configured display.
type Panel struct {
	Name         string
	Manufacturer string
	Model        string

	Width, Height int
	Rotation      int

	// SPIPort is the spireg port name ("SPI0.0" style); empty selects the
	// platform default. Pin names resolve through gpioreg on real hardware.
	SPIPort                     string
	PinCS, PinDC, PinRST, PinBL string

	// Inclusive usable-area bounds in device coordinates.
	Left, Right, Top, Bottom int

	// Calibrated center. Zero means "recompute from the bounds".
	CenterX, CenterY int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Device:   "/dev/ttyACM0",
		Baud:     DefaultBaud,
		Timeout:  15 * time.Second,
		LogLevel: "info",
	}
}

// Validate checks the configuration for errors. All failures wrap
// domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if !c.Stdio && c.Device == "" {
		return fmt.Errorf("%w: device is required (or --stdio)", domain.ErrInvalidConfig)
	}
	if c.Baud <= 0 {
		return fmt.Errorf("%w: baud must be positive", domain.ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", domain.ErrInvalidConfig)
	}
	if len(c.Panels) == 0 {
		return fmt.Errorf("%w: at least one [[panel]] is required", domain.ErrInvalidConfig)
	}
	for i := range c.Panels {
		if err := c.Panels[i].validate(); err != nil {
			return fmt.Errorf("%w: panel %d: %w", domain.ErrInvalidConfig, i, err)
		}
	}
	return nil
}

func (p *Panel) validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("published resolution must be positive, got %dx%d", p.Width, p.Height)
	}
	if p.Rotation < 0 || p.Rotation > 3 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidRotation, p.Rotation)
	}
	if p.Left > p.Right || p.Top > p.Bottom {
		return fmt.Errorf("calibration bounds are inverted: left=%d right=%d top=%d bottom=%d",
			p.Left, p.Right, p.Top, p.Bottom)
	}
	return nil
}

// Geometry converts the configured panel to its domain geometry. A zero
// center in the file means "derive from the bounds".
func (p Panel) Geometry() domain.Geometry {
	g := domain.Geometry{
		Name:         p.Name,
		Manufacturer: p.Manufacturer,
		Model:        p.Model,
		PinCS:        p.PinCS,
		PinDC:        p.PinDC,
		PinRST:       p.PinRST,
		PinBL:        p.PinBL,
		PhysicalW:    p.Width,
		PhysicalH:    p.Height,
		Rotation:     domain.Rotation(p.Rotation),
		Usable: domain.Rect{
			X: p.Left,
			Y: p.Top,
			W: p.Right - p.Left + 1,
			H: p.Bottom - p.Top + 1,
		},
		CenterX: p.CenterX,
		CenterY: p.CenterY,
	}
	if p.CenterX == 0 && p.CenterY == 0 {
		g.RecomputeCenter()
	}
	return g
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not
// changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
