// Package fbsim is an in-memory PanelDriver: a plain RGB565 framebuffer
// with no hardware behind it. It backs the --simulate mode and every test
// that needs to assert on drawn pixels.
package fbsim

import (
	"fmt"

	"github.com/panel-labs/paneld/internal/domain"
)

// Driver simulates one panel as a width*height RGB565 grid. Writes outside
// the physical area are dropped, matching the controller's hardware
// clipping during overscan calibration.
type Driver struct {
	w, h int
	pix  []domain.Color

	rotation  domain.Rotation
	backlight bool

	// InitCalls counts Init invocations so tests can assert the panel
	// instance only resets the controller once.
	InitCalls int
}

// New returns a simulated panel of the given physical size.
func New(w, h int) *Driver {
	return &Driver{w: w, h: h, pix: make([]domain.Color, w*h)}
}

func (d *Driver) Init() error {
	d.InitCalls++
	return d.Fill(domain.Black)
}

func (d *Driver) SetBacklight(on bool) error {
	d.backlight = on
	return nil
}

func (d *Driver) SetRotation(r domain.Rotation) error {
	if !r.Valid() {
		return fmt.Errorf("fbsim: %w: %d", domain.ErrInvalidRotation, r)
	}
	d.rotation = r
	return nil
}

func (d *Driver) DrawPixel(x, y int, c domain.Color) error {
	if x < 0 || y < 0 || x >= d.w || y >= d.h {
		return nil
	}
	d.pix[y*d.w+x] = c
	return nil
}

func (d *Driver) FillRect(x, y, w, h int, c domain.Color) error {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			_ = d.DrawPixel(xx, yy, c)
		}
	}
	return nil
}

func (d *Driver) Fill(c domain.Color) error {
	for i := range d.pix {
		d.pix[i] = c
	}
	return nil
}

func (d *Driver) Close() error { return nil }

// At returns the stored pixel, or black for out-of-range coordinates.
func (d *Driver) At(x, y int) domain.Color {
	if x < 0 || y < 0 || x >= d.w || y >= d.h {
		return domain.Black
	}
	return d.pix[y*d.w+x]
}

// Backlight reports the backlight state.
func (d *Driver) Backlight() bool { return d.backlight }

// Rotation reports the last rotation set.
func (d *Driver) Rotation() domain.Rotation { return d.rotation }
