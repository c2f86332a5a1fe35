// Package watcher re-applies panel calibration when the config file changes
// on disk, so the calibration tooling can edit usable areas without a daemon
// restart.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/panel-labs/paneld/internal/cliconfig"
	"github.com/panel-labs/paneld/internal/panel"
)

// debounceDelay coalesces the editor write-rename-write bursts into one
// reload.
const debounceDelay = 100 * time.Millisecond

// CalibrationWatcher monitors one config file via fsnotify and pushes
// changed geometry into the registry's panels.
type CalibrationWatcher struct {
	path string
	reg  *panel.Registry
	log  zerolog.Logger

	// exec runs the geometry apply. The daemon passes the driver loop's
	// Invoke so applies are serialized with session work; nil applies
	// directly (tests, or before the loop starts).
	exec func(func())

	mu       sync.Mutex
	debounce *time.Timer
}

// New creates a watcher over the given config file path. exec may be nil.
func New(path string, reg *panel.Registry, log zerolog.Logger, exec func(func())) *CalibrationWatcher {
	if exec == nil {
		exec = func(fn func()) { fn() }
	}
	return &CalibrationWatcher{
		path: path,
		reg:  reg,
		log:  log.With().Str("component", "watcher").Logger(),
		exec: exec,
	}
}

// Run blocks until the context is cancelled. The parent directory is watched
// rather than the file itself: editors and the calibration tooling replace
// the file by rename, which drops a per-file watch.
func (w *CalibrationWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.log.Info().Str("path", w.path).Msg("watching config")

	base := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			w.stopDebounce()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.debounceReload(debounceDelay)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *CalibrationWatcher) debounceReload(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.Reload)
}

func (w *CalibrationWatcher) stopDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}

// Reload re-reads the panel tables and applies geometry to every matching
// registered panel. Panels present in the registry but missing from the file
// keep their current calibration; a half-saved file must not blank them.
func (w *CalibrationWatcher) Reload() {
	panels, err := cliconfig.LoadPanels(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("config reload failed")
		return
	}
	w.exec(func() { w.apply(panels) })
}

func (w *CalibrationWatcher) apply(panels []cliconfig.Panel) {
	for _, pc := range panels {
		inst, ok := w.reg.Get(pc.Name)
		if !ok {
			w.log.Debug().Str("panel", pc.Name).Msg("config names unknown panel, ignoring")
			continue
		}
		g := pc.Geometry()
		if err := inst.ApplyCalibration(g.Usable, g.CenterX, g.CenterY, g.Rotation); err != nil {
			w.log.Warn().Err(err).Str("panel", pc.Name).Msg("calibration apply failed")
			continue
		}
		w.log.Info().
			Str("panel", pc.Name).
			Int("x", g.Usable.X).Int("y", g.Usable.Y).
			Int("w", g.Usable.W).Int("h", g.Usable.H).
			Msg("calibration reloaded")
	}
}
