package panel

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/panel-labs/paneld/internal/domain"
)

// drawText renders s with the fixed 7x13 face at (x, y), where y is the
// text baseline, and blits the lit pixels through the driver via an
// off-screen alpha mask.
func (p *Instance) drawText(x, y int, c domain.Color, s string) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil()
	h := face.Metrics().Height.Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	if w <= 0 || h <= 0 {
		return
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.NewUniform(color.Alpha{A: 0xFF}),
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(s)

	for my := 0; my < h; my++ {
		for mx := 0; mx < w; mx++ {
			if mask.AlphaAt(mx, my).A >= 0x80 {
				if err := p.drv.DrawPixel(x+mx, y-ascent+my, c); err != nil {
					p.log.Debug().Err(err).Msg("text pixel write failed")
					return
				}
			}
		}
	}
}
