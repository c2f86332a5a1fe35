package ports

import "github.com/panel-labs/paneld/internal/domain"

// PanelDriver abstracts one physical display controller.
//
// Coordinates are device coordinates; drivers clip writes that fall outside
// the physical panel the way the controller hardware does (the calibration
// overscan deliberately probes past the published edges). Bounds policy
// against the calibrated usable rectangle is the caller's job, not the
// driver's.
type PanelDriver interface {
	// Init powers the controller, runs its reset/config sequence and
	// clears the screen. Implementations need not be idempotent; the
	// panel instance guards against repeat calls.
	Init() error

	// SetBacklight switches the backlight control pin.
	SetBacklight(on bool) error

	// SetRotation selects one of the four MADCTL orientations.
	SetRotation(r domain.Rotation) error

	// DrawPixel writes a single pixel, unconditionally.
	DrawPixel(x, y int, c domain.Color) error

	// FillRect fills a rectangle with one color.
	FillRect(x, y, w, h int, c domain.Color) error

	// Fill clears the whole physical panel to one color.
	Fill(c domain.Color) error

	// Close releases the driver's resources.
	Close() error
}
