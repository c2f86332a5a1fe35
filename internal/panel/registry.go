package panel

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/panel-labs/paneld/internal/domain"
)

// MaxPanels is the registry capacity. A single SPI bus with per-panel chip
// selects tops out well before this in practice.
const MaxPanels = 8

// Registry owns every panel instance for the process lifetime. Lookup is a
// linear scan over a handful of entries. Names are not deduplicated here:
// uniqueness is the configuration tooling's responsibility, and a duplicate
// simply makes the second entry unreachable by name.
type Registry struct {
	panels []*Instance
	log    zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{log: log.With().Str("component", "registry").Logger()}
}

// Add registers an instance. Fails with ErrRegistryFull at capacity.
func (r *Registry) Add(inst *Instance) error {
	if len(r.panels) >= MaxPanels {
		return fmt.Errorf("%w (capacity %d)", domain.ErrRegistryFull, MaxPanels)
	}
	r.panels = append(r.panels, inst)
	return nil
}

// Len returns the number of registered panels.
func (r *Registry) Len() int { return len(r.panels) }

// Get resolves a panel by exact, case-sensitive name. First match wins.
func (r *Registry) Get(name string) (*Instance, bool) {
	for _, p := range r.panels {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Each calls fn for every panel in registration order.
func (r *Registry) Each(fn func(*Instance)) {
	for _, p := range r.panels {
		fn(p)
	}
}

// InitAll initializes every panel, continuing past individual failures.
// Returns false if any panel failed; partial bring-up is reported, not
// fatal.
func (r *Registry) InitAll() bool {
	ok := true
	for _, p := range r.panels {
		if err := p.Init(); err != nil {
			r.log.Error().Err(err).Str("panel", p.Name()).Msg("panel init failed")
			ok = false
		}
	}
	return ok
}

// ShowAllTestPatterns draws the startup pattern on every panel.
func (r *Registry) ShowAllTestPatterns() {
	for _, p := range r.panels {
		if err := p.ShowTestPattern(); err != nil {
			r.log.Warn().Err(err).Str("panel", p.Name()).Msg("test pattern failed")
		}
	}
}

// List writes one line per panel to w: name and usable dimensions, in
// registration order. Diagnostic output for the LIST command.
func (r *Registry) List(w io.Writer) {
	for i, p := range r.panels {
		g := p.Geometry()
		fmt.Fprintf(w, "%d: %s (%dx%d usable)\r\n", i, p.Name(), g.Usable.W, g.Usable.H)
	}
}

// Close releases every panel's driver. Errors are logged, not returned;
// teardown keeps going.
func (r *Registry) Close() {
	for _, p := range r.panels {
		if err := p.Close(); err != nil {
			r.log.Warn().Err(err).Str("panel", p.Name()).Msg("close failed")
		}
	}
}
