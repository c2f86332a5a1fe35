package domain

import "testing"

func TestRGB565Pack(t *testing.T) {
	cases := []struct {
		r, g, b uint8
		want    Color
	}{
		{0, 0, 0, Black},
		{255, 255, 255, White},
		{255, 0, 0, Red},
		{0, 255, 0, Green},
		{0, 0, 255, Blue},
	}
	for _, c := range cases {
		if got := RGB565(c.r, c.g, c.b); got != c.want {
			t.Errorf("RGB565(%d,%d,%d) = %#04x, want %#04x", c.r, c.g, c.b, got, c.want)
		}
	}
}

func TestColorWireEncoding(t *testing.T) {
	hi, lo := Red.Bytes()
	if hi != 0xF8 || lo != 0x00 {
		t.Fatalf("Red.Bytes() = %#02x,%#02x, want 0xf8,0x00", hi, lo)
	}
	if got := ColorFrom(hi, lo); got != Red {
		t.Fatalf("ColorFrom round trip = %#04x, want %#04x", got, Red)
	}
}
