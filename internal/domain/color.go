package domain

// Color is a packed 16-bit RGB565 pixel value, the native format of the
// ST7735 controller and the only pixel format on the wire (big-endian,
// two bytes per pixel).
type Color uint16

// Common panel colors.
const (
	Black   Color = 0x0000
	White   Color = 0xFFFF
	Red     Color = 0xF800
	Green   Color = 0x07E0
	Blue    Color = 0x001F
	Yellow  Color = 0xFFE0
	Cyan    Color = 0x07FF
	Magenta Color = 0xF81F
)

// RGB565 packs 8-bit channels into a Color: 5 bits red, 6 green, 5 blue.
func RGB565(r, g, b uint8) Color {
	return Color(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3)
}

// Bytes returns the big-endian wire encoding of the color.
func (c Color) Bytes() (hi, lo byte) {
	return byte(c >> 8), byte(c)
}

// ColorFrom decodes a big-endian pixel pair.
func ColorFrom(hi, lo byte) Color {
	return Color(uint16(hi)<<8 | uint16(lo))
}
