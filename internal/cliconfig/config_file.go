package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config but uses strings for durations to make TOML
// friendly. Panel tables follow the calibration tooling's schema: a device
// block flattened with its pinout and inclusive calibration bounds.
type fileConfig struct {
	Device   string `toml:"device"`
	Baud     int    `toml:"baud"`
	Timeout  string `toml:"timeout"`
	LogLevel string `toml:"log_level"`
	Watch    *bool  `toml:"watch"`
	Simulate *bool  `toml:"simulate"`

	Panels []filePanel `toml:"panel"`
}

type filePanel struct {
	Name                string `toml:"name"`
	Manufacturer        string `toml:"manufacturer"`
	Model               string `toml:"model"`
	PublishedResolution []int  `toml:"published_resolution"`

	Pinout struct {
		SPI       string `toml:"spi"`
		CS        string `toml:"cs"`
		DC        string `toml:"dc"`
		RST       string `toml:"rst"`
		Backlight string `toml:"backlight"`
	} `toml:"pinout"`

	Calibration struct {
		Left        int    `toml:"left"`
		Right       int    `toml:"right"`
		Top         int    `toml:"top"`
		Bottom      int    `toml:"bottom"`
		Orientation int   `toml:"orientation"`
		Center      []int `toml:"center"`
	} `toml:"calibration"`
}

// loadFileConfig reads and parses a TOML config file.
func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// defaultConfigPath returns ~/.paneld/config.toml if the user home directory
// is accessible.
func defaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".paneld", "config.toml")
	}
	return ""
}

// applyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map). Panel
// tables always come from the file; there is no flag for them.
func applyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("device", fc.Device, &cfg.Device)
	s.setInt("baud", fc.Baud, &cfg.Baud)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}
	s.setBool("watch", fc.Watch, &cfg.Watch)
	s.setBool("simulate", fc.Simulate, &cfg.Simulate)

	cfg.Panels = cfg.Panels[:0]
	for _, fp := range fc.Panels {
		cfg.Panels = append(cfg.Panels, fp.toPanel())
	}
	return nil
}

func (fp filePanel) toPanel() Panel {
	p := Panel{
		Name:         fp.Name,
		Manufacturer: fp.Manufacturer,
		Model:        fp.Model,
		Rotation:     fp.Calibration.Orientation,
		SPIPort:      fp.Pinout.SPI,
		PinCS:        fp.Pinout.CS,
		PinDC:        fp.Pinout.DC,
		PinRST:       fp.Pinout.RST,
		PinBL:        fp.Pinout.Backlight,
		Left:         fp.Calibration.Left,
		Right:        fp.Calibration.Right,
		Top:          fp.Calibration.Top,
		Bottom:       fp.Calibration.Bottom,
	}
	if len(fp.PublishedResolution) == 2 {
		p.Width = fp.PublishedResolution[0]
		p.Height = fp.PublishedResolution[1]
	}
	if len(fp.Calibration.Center) == 2 {
		p.CenterX = fp.Calibration.Center[0]
		p.CenterY = fp.Calibration.Center[1]
	}
	return p
}

// LoadPanels reads just the panel tables from a config file. The
// calibration watcher uses it to re-read geometry without disturbing the
// merged daemon config.
func LoadPanels(path string) ([]Panel, error) {
	fc, err := loadFileConfig(path)
	if err != nil {
		return nil, err
	}
	panels := make([]Panel, 0, len(fc.Panels))
	for _, fp := range fc.Panels {
		panels = append(panels, fp.toPanel())
	}
	return panels, nil
}

// fileExists checks if a file exists at the given path.
func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Exported functions for use from main package without exposing internal
// helpers.

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (fileConfig, error) {
	return loadFileConfig(path)
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return defaultConfigPath()
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	return applyFileConfig(cfg, fc, changed)
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	return fileExists(p)
}
