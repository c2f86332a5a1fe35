package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/panel-labs/paneld/internal/adapters/fbsim"
	"github.com/panel-labs/paneld/internal/domain"
	"github.com/panel-labs/paneld/internal/panel"
)

func writeConfig(t *testing.T, path string, left int) {
	t.Helper()
	content := fmt.Sprintf(`
device = "/dev/null"

[[panel]]
name = "A"
published_resolution = [160, 128]

[panel.calibration]
left = %d
right = 158
top = 1
bottom = 126
`, left)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func newRegistry(t *testing.T) *panel.Registry {
	t.Helper()
	reg := panel.NewRegistry(zerolog.Nop())
	geo := domain.Geometry{
		Name:      "A",
		PhysicalW: 160,
		PhysicalH: 128,
		Usable:    domain.Rect{X: 1, Y: 1, W: 158, H: 126},
	}
	if err := reg.Add(panel.New(geo, fbsim.New(160, 128), zerolog.Nop())); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return reg
}

func TestReloadAppliesGeometry(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	writeConfig(t, path, 5)

	reg := newRegistry(t)
	w := New(path, reg, zerolog.Nop(), nil)
	w.Reload()

	inst, _ := reg.Get("A")
	if got := inst.Geometry().Usable.X; got != 5 {
		t.Fatalf("usable X = %d, want 5", got)
	}
	// W = right-left+1 = 158-5+1.
	if got := inst.Geometry().Usable.W; got != 154 {
		t.Fatalf("usable W = %d, want 154", got)
	}
}

func TestReloadIgnoresUnknownPanels(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	content := `
[[panel]]
name = "Z"
published_resolution = [160, 128]

[panel.calibration]
left = 0
right = 159
top = 0
bottom = 127
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	reg := newRegistry(t)
	inst, _ := reg.Get("A")
	before := inst.Geometry().Usable

	w := New(path, reg, zerolog.Nop(), nil)
	w.Reload()

	if inst.Geometry().Usable != before {
		t.Fatalf("geometry changed: %+v -> %+v", before, inst.Geometry().Usable)
	}
}

func TestReloadSurvivesBrokenFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, []byte("not toml at all ["), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	reg := newRegistry(t)
	w := New(path, reg, zerolog.Nop(), nil)
	w.Reload() // must not panic or alter anything

	inst, _ := reg.Get("A")
	if inst.Geometry().Usable.X != 1 {
		t.Fatal("broken config must leave calibration untouched")
	}
}

func TestWatcherPicksUpFileChange(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	writeConfig(t, path, 1)

	reg := newRegistry(t)

	// The exec hook doubles as the synchronization point: geometry is only
	// read after the apply ran.
	applied := make(chan struct{}, 4)
	w := New(path, reg, zerolog.Nop(), func(fn func()) {
		fn()
		applied <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watch a moment to attach, then rewrite the file.
	time.Sleep(200 * time.Millisecond)
	writeConfig(t, path, 7)

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reacted to the file change")
	}

	inst, _ := reg.Get("A")
	if got := inst.Geometry().Usable.X; got != 7 {
		t.Fatalf("usable X = %d, want 7", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
