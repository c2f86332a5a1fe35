package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (PANELD_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("device", os.Getenv("PANELD_DEVICE"), &cfg.Device)
	s.setString("log-level", os.Getenv("PANELD_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setIntFromString("baud", os.Getenv("PANELD_BAUD"), &cfg.Baud); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("PANELD_TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}

	s.setBoolFromString("stdio", os.Getenv("PANELD_STDIO"), &cfg.Stdio)
	s.setBoolFromString("simulate", os.Getenv("PANELD_SIMULATE"), &cfg.Simulate)
	s.setBoolFromString("watch", os.Getenv("PANELD_WATCH"), &cfg.Watch)

	return nil
}
