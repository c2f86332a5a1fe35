package panel

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/panel-labs/paneld/internal/domain"
	"github.com/panel-labs/paneld/internal/ports"
)

// Instance wraps one physical panel: its geometry plus the driver that
// talks to the controller. Instances are created at registration, live for
// the process lifetime and are only ever touched from the session's
// goroutine.
type Instance struct {
	geo domain.Geometry
	drv ports.PanelDriver
	log zerolog.Logger

	initialized bool

	// borderBuf is reserved for restoring pixels under the overlay frame.
	// Restoration is not implemented: the frame overwrites image content
	// and the buffer is only allocated lazily and released on Close. Kept
	// as a known limitation rather than silently promising a restore path.
	borderBuf []domain.Color
}

// New creates an instance wrapping geo and drv. The center is recomputed
// from the configured usable rectangle so stale config values cannot leak
// into the centering math.
func New(geo domain.Geometry, drv ports.PanelDriver, log zerolog.Logger) *Instance {
	geo.RecomputeCenter()
	return &Instance{
		geo: geo,
		drv: drv,
		log: log.With().Str("panel", geo.Name).Logger(),
	}
}

// Name returns the panel's unique registry name.
func (p *Instance) Name() string { return p.geo.Name }

// Geometry returns a pointer to the live geometry. The protocol layer
// mutates it only through Commit and SetRotation.
func (p *Instance) Geometry() *domain.Geometry { return &p.geo }

// Init brings the panel up: backlight, controller reset/config, clear to
// black. Idempotent by contract; the second and later calls are success
// no-ops so a hardware reset never runs twice.
func (p *Instance) Init() error {
	if p.initialized {
		return nil
	}
	if err := p.drv.SetBacklight(true); err != nil {
		return fmt.Errorf("panel %s: backlight: %w", p.geo.Name, err)
	}
	if err := p.drv.Init(); err != nil {
		return fmt.Errorf("panel %s: init: %w", p.geo.Name, err)
	}
	if err := p.drv.SetRotation(p.geo.Rotation); err != nil {
		return fmt.Errorf("panel %s: rotation: %w", p.geo.Name, err)
	}
	p.initialized = true
	p.log.Info().
		Int("width", p.geo.PhysicalW).
		Int("height", p.geo.PhysicalH).
		Str("rotation", p.geo.Rotation.String()).
		Msg("panel initialized")
	return nil
}

// Initialized reports whether Init has completed.
func (p *Instance) Initialized() bool { return p.initialized }

// Close releases the overlay buffer and the driver.
func (p *Instance) Close() error {
	p.borderBuf = nil
	return p.drv.Close()
}

// Clear fills the whole panel with one color.
func (p *Instance) Clear(c domain.Color) error {
	return p.drv.Fill(c)
}

// DrawPixel writes one pixel at device coordinates. No clipping: callers
// are responsible for bounds policy.
func (p *Instance) DrawPixel(x, y int, c domain.Color) error {
	return p.drv.DrawPixel(x, y, c)
}

// InBounds reports strict containment in the stored usable rectangle.
func (p *Instance) InBounds(x, y int) bool {
	return p.geo.Usable.Contains(x, y)
}

// InAdjustedBounds reports containment in the usable rectangle after
// applying the live calibration deltas. This is the cropping check used
// during pixel streaming.
func (p *Instance) InAdjustedBounds(x, y int, adj domain.Adjust) bool {
	return adj.Apply(p.geo.Usable).Contains(x, y)
}

// SetRotation validates and applies a new orientation.
func (p *Instance) SetRotation(r domain.Rotation) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidRotation, r)
	}
	if err := p.drv.SetRotation(r); err != nil {
		return err
	}
	p.geo.Rotation = r
	return nil
}

// Commit folds the live adjustment deltas into the stored usable rectangle
// and recomputes the center. In-memory only; durable persistence belongs to
// the configuration tooling.
func (p *Instance) Commit(adj domain.Adjust) {
	p.geo.Commit(adj)
	p.log.Info().
		Int("x", p.geo.Usable.X).Int("y", p.geo.Usable.Y).
		Int("w", p.geo.Usable.W).Int("h", p.geo.Usable.H).
		Msg("calibration committed")
}

// ApplyCalibration replaces the stored usable rectangle, center and
// rotation wholesale. Used by the config watcher when the panel's entry in
// the config file changes at runtime.
func (p *Instance) ApplyCalibration(usable domain.Rect, centerX, centerY int, rot domain.Rotation) error {
	if !rot.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidRotation, rot)
	}
	p.geo.Usable = usable
	p.geo.CenterX = centerX
	p.geo.CenterY = centerY
	if rot != p.geo.Rotation {
		if err := p.SetRotation(rot); err != nil {
			return err
		}
	}
	return nil
}

// DrawCalibrationFrame clears the panel and draws the frame outline at the
// adjusted bounds. Destructive to any prior image; it is a visual
// calibration aid, not an overlay.
func (p *Instance) DrawCalibrationFrame(adj domain.Adjust, c domain.Color, thickness int) error {
	if err := p.Clear(domain.Black); err != nil {
		return err
	}
	return p.outline(adj.Apply(p.geo.Usable), c, thickness)
}

// DrawOverlayFrame draws the frame outline at the stored usable bounds
// without clearing, framing a just-drawn image. Pixels under the border are
// not preserved; see borderBuf.
func (p *Instance) DrawOverlayFrame(c domain.Color, thickness int) error {
	r := p.geo.Usable
	if p.borderBuf == nil {
		p.borderBuf = make([]domain.Color, 2*thickness*(r.W+r.H))
	}
	return p.outline(r, c, thickness)
}

// outline draws a thickness-pixel nested rectangle outline as four edge
// bands. The interior is untouched.
func (p *Instance) outline(r domain.Rect, c domain.Color, thickness int) error {
	t := thickness
	if t > r.H/2 {
		t = r.H / 2
	}
	if t > r.W/2 {
		t = r.W / 2
	}
	if t < 1 {
		t = 1
	}
	if err := p.drv.FillRect(r.X, r.Y, r.W, t, c); err != nil {
		return err
	}
	if err := p.drv.FillRect(r.X, r.Bottom()-t+1, r.W, t, c); err != nil {
		return err
	}
	if err := p.drv.FillRect(r.X, r.Y+t, t, r.H-2*t, c); err != nil {
		return err
	}
	return p.drv.FillRect(r.Right()-t+1, r.Y+t, t, r.H-2*t, c)
}

// PaintError fills the panel red and renders the message. Worst-case
// observable effect of any protocol or validation failure.
func (p *Instance) PaintError(msg string) {
	if err := p.drv.Fill(domain.Red); err != nil {
		p.log.Warn().Err(err).Msg("error paint failed")
		return
	}
	p.drawText(p.geo.Usable.X+4, p.geo.Usable.Y+12, domain.White, "ERROR:")
	p.drawText(p.geo.Usable.X+4, p.geo.Usable.Y+26, domain.White, msg)
}

// ShowTestPattern draws the startup sanity pattern inside the usable
// rectangle: a horizontal color gradient, the boundary outline, and the
// device metadata. Not part of the protocol contract.
func (p *Instance) ShowTestPattern() error {
	if err := p.Clear(domain.Black); err != nil {
		return err
	}
	r := p.geo.Usable

	// Gradient sweeps red -> green -> blue left to right.
	for i := 0; i < r.W; i++ {
		c := gradientColor(i, r.W)
		if err := p.drv.FillRect(r.X+i, r.Y, 1, r.H, c); err != nil {
			return err
		}
	}
	if err := p.outline(r, domain.White, 1); err != nil {
		return err
	}

	p.drawText(r.X+4, r.Y+12, domain.White, p.geo.Name)
	if p.geo.Model != "" {
		p.drawText(r.X+4, r.Y+26, domain.White, p.geo.Model)
	}
	p.drawText(r.X+4, r.Y+40, domain.White, fmt.Sprintf("%dx%d", r.W, r.H))
	return nil
}

func gradientColor(i, width int) domain.Color {
	if width <= 1 {
		return domain.Red
	}
	// Two linear ramps across the usable width.
	pos := i * 510 / (width - 1)
	if pos < 255 {
		return domain.RGB565(uint8(255-pos), uint8(pos), 0)
	}
	pos -= 255
	return domain.RGB565(0, uint8(255-pos), uint8(pos))
}
