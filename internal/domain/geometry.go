package domain

import "fmt"

// Calibration travel limits. Each edge of the usable rectangle may be moved
// up to OverscanLimit pixels beyond its published position (panels commonly
// hide a few border pixels behind the bezel), and no closer than
// CenterMargin pixels to the stored center.
const (
	OverscanLimit = 10
	CenterMargin  = 10
)

// Rotation is one of the four discrete panel orientations (0..3), matching
// the ST7735 MADCTL quadrants.
type Rotation uint8

const (
	RotationPortrait Rotation = iota
	RotationLandscape
	RotationPortraitFlipped
	RotationLandscapeFlipped
)

// Valid reports whether r is one of the four legal orientations.
func (r Rotation) Valid() bool { return r <= RotationLandscapeFlipped }

func (r Rotation) String() string {
	switch r {
	case RotationPortrait:
		return "portrait"
	case RotationLandscape:
		return "landscape"
	case RotationPortraitFlipped:
		return "reverse portrait"
	case RotationLandscapeFlipped:
		return "reverse landscape"
	default:
		return "unknown"
	}
}

// Rect is a pixel rectangle in device coordinates. W and H are inclusive
// pixel counts, so the far edges sit at X+W-1 and Y+H-1.
type Rect struct {
	X, Y int
	W, H int
}

// Right returns the inclusive X coordinate of the right edge.
func (r Rect) Right() int { return r.X + r.W - 1 }

// Bottom returns the inclusive Y coordinate of the bottom edge.
func (r Rect) Bottom() int { return r.Y + r.H - 1 }

// Contains reports strict containment of the pixel at (x, y).
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x <= r.Right() && y >= r.Y && y <= r.Bottom()
}

// Edge names one side of the usable rectangle.
type Edge int

const (
	EdgeTop Edge = iota
	EdgeBottom
	EdgeLeft
	EdgeRight
)

func (e Edge) String() string {
	switch e {
	case EdgeTop:
		return "top"
	case EdgeBottom:
		return "bottom"
	case EdgeLeft:
		return "left"
	case EdgeRight:
		return "right"
	default:
		return "unknown"
	}
}

// Adjust holds the four live calibration deltas applied on top of a stored
// usable rectangle.
//
// Sign convention, kept exactly as the calibration UI defines it: a positive
// delta always moves its edge OUTWARD (growing the rectangle). Because
// "outward" for the top and left edges means a smaller coordinate, those two
// edges subtract their delta while bottom and right add theirs. The
// asymmetry is intentional; do not normalize it.
type Adjust struct {
	Top, Bottom, Left, Right int
}

// IsZero reports whether all four deltas are zero.
func (a Adjust) IsZero() bool { return a == Adjust{} }

// Apply returns r with the four edge deltas applied.
func (a Adjust) Apply(r Rect) Rect {
	left := r.X - a.Left
	top := r.Y - a.Top
	right := r.Right() + a.Right
	bottom := r.Bottom() + a.Bottom
	return Rect{X: left, Y: top, W: right - left + 1, H: bottom - top + 1}
}

// Geometry describes one physical panel: published resolution, opaque pin
// assignments, and the calibrated usable rectangle. The usable rectangle
// and center change only through Commit; everything else is fixed at
// registration.
type Geometry struct {
	Name         string
	Manufacturer string
	Model        string

	// Pin names are opaque handles for the driver layer (gpioreg names on
	// real hardware); the protocol layer never interprets them.
	PinCS, PinDC, PinRST, PinBL string

	PhysicalW, PhysicalH int
	Rotation             Rotation

	Usable           Rect
	CenterX, CenterY int
}

// RecomputeCenter refreshes the cached usable-rectangle center. Called
// whenever the usable rectangle changes.
func (g *Geometry) RecomputeCenter() {
	g.CenterX = g.Usable.X + g.Usable.W/2
	g.CenterY = g.Usable.Y + g.Usable.H/2
}

// Commit folds the live adjustment deltas into the stored usable rectangle
// and recomputes the center. Limits are not enforced here; the adjustment
// command validated each delta when it was set.
func (g *Geometry) Commit(a Adjust) {
	g.Usable = a.Apply(g.Usable)
	g.RecomputeCenter()
}

// CheckAdjust validates a prospective delta for one edge against the travel
// limits: the edge may sit at most OverscanLimit pixels beyond its published
// position and no closer than CenterMargin pixels to the stored center.
// It returns whether the edge would land exactly on the outer limit (the
// caller echoes a notice in that case) and an error naming the permitted
// minimum or maximum when the delta is out of range.
func (g *Geometry) CheckAdjust(e Edge, delta int) (atOuterLimit bool, err error) {
	switch e {
	case EdgeTop:
		newTop := g.Usable.Y - delta
		outer := -OverscanLimit
		inner := g.CenterY - CenterMargin
		if newTop < outer {
			return false, fmt.Errorf("top edge would be beyond limit (maximum adjustment: %d)", g.Usable.Y-outer)
		}
		if newTop > inner {
			return false, fmt.Errorf("top edge would be past center-%d (minimum adjustment: %d)", CenterMargin, g.Usable.Y-inner)
		}
		return newTop == outer, nil

	case EdgeBottom:
		base := g.Usable.Bottom()
		newBottom := base + delta
		outer := g.PhysicalH + OverscanLimit - 1
		inner := g.CenterY + CenterMargin
		if newBottom > outer {
			return false, fmt.Errorf("bottom edge would be beyond limit (maximum adjustment: %d)", outer-base)
		}
		if newBottom < inner {
			return false, fmt.Errorf("bottom edge would be past center+%d (minimum adjustment: %d)", CenterMargin, inner-base)
		}
		return newBottom == outer, nil

	case EdgeLeft:
		newLeft := g.Usable.X - delta
		outer := -OverscanLimit
		inner := g.CenterX - CenterMargin
		if newLeft < outer {
			return false, fmt.Errorf("left edge would be beyond limit (maximum adjustment: %d)", g.Usable.X-outer)
		}
		if newLeft > inner {
			return false, fmt.Errorf("left edge would be past center-%d (minimum adjustment: %d)", CenterMargin, g.Usable.X-inner)
		}
		return newLeft == outer, nil

	case EdgeRight:
		base := g.Usable.Right()
		newRight := base + delta
		outer := g.PhysicalW + OverscanLimit - 1
		inner := g.CenterX + CenterMargin
		if newRight > outer {
			return false, fmt.Errorf("right edge would be beyond limit (maximum adjustment: %d)", outer-base)
		}
		if newRight < inner {
			return false, fmt.Errorf("right edge would be past center+%d (minimum adjustment: %d)", CenterMargin, inner-base)
		}
		return newRight == outer, nil
	}
	return false, fmt.Errorf("unknown edge %d", e)
}
