// Package st7735 drives ST7735-class TFT panels over SPI through periph.io.
// It implements ports.PanelDriver: command/data framing on the DC pin, an
// optional hardware reset pin, and a switched backlight pin.
package st7735

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/panel-labs/paneld/internal/domain"
)

// ST7735 command set (the subset this driver uses).
const (
	cmdSWRESET = 0x01
	cmdSLPOUT  = 0x11
	cmdNORON   = 0x13
	cmdINVOFF  = 0x20
	cmdDISPOFF = 0x28
	cmdDISPON  = 0x29
	cmdCASET   = 0x2A
	cmdRASET   = 0x2B
	cmdRAMWR   = 0x2C
	cmdMADCTL  = 0x36
	cmdCOLMOD  = 0x3A

	cmdFRMCTR1 = 0xB1
	cmdPWCTR1  = 0xC0
	cmdVMCTR1  = 0xC5
)

// MADCTL bits.
const (
	madMY  = 0x80
	madMX  = 0x40
	madMV  = 0x20
	madBGR = 0x08
)

// madctlByRotation maps the four orientations to MADCTL values, following
// the stock ST7735R wiring.
var madctlByRotation = [4]byte{
	domain.RotationPortrait:         madMX | madMY,
	domain.RotationLandscape:        madMY | madMV,
	domain.RotationPortraitFlipped:  0,
	domain.RotationLandscapeFlipped: madMX | madMV,
}

// Opts is the panel wiring configuration.
type Opts struct {
	// W and H are the addressable dimensions for the configured rotation.
	W, H int

	// ColumnOffset and RowOffset shift the addressing window; green-tab
	// modules map their panel away from RAM origin.
	ColumnOffset, RowOffset int

	Rotation domain.Rotation

	// BGR selects the blue-red swapped subpixel order some modules ship
	// with.
	BGR bool

	RST gpio.PinIO  // optional
	BL  gpio.PinOut // optional
}

// Dev is the device handle for one ST7735 panel.
type Dev struct {
	c   conn.Conn
	dc  gpio.PinOut
	rst gpio.PinIO
	bl  gpio.PinOut

	w, h      int
	colOff    int
	rowOff    int
	rotation  domain.Rotation
	bgr       bool
	maxTxSize int
}

// NewSPI creates a device on the given SPI port. The port is configured for
// 12MHz Mode0 8-bit transfers; the controller itself is not touched until
// Init.
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil || opts.W <= 0 || opts.H <= 0 {
		return nil, errors.New("st7735: width and height are required")
	}
	if dc == nil {
		return nil, errors.New("st7735: dc pin is required")
	}

	c, err := p.Connect(12*1000*1000, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("st7735: spi connect: %w", err)
	}

	d := &Dev{
		c:         c,
		dc:        dc,
		rst:       opts.RST,
		bl:        opts.BL,
		w:         opts.W,
		h:         opts.H,
		colOff:    opts.ColumnOffset,
		rowOff:    opts.RowOffset,
		rotation:  opts.Rotation,
		bgr:       opts.BGR,
		maxTxSize: 4096,
	}
	if lim, ok := c.(conn.Limits); ok {
		if m := lim.MaxTxSize(); m > 0 && m < d.maxTxSize {
			d.maxTxSize = m
		}
	}
	return d, nil
}

// Init resets the controller and runs the ST7735R bring-up sequence, ending
// with the panel on and cleared to black.
func (d *Dev) Init() error {
	if err := d.hardReset(); err != nil {
		return err
	}

	if err := d.sendCommand(cmdSWRESET); err != nil {
		return err
	}
	time.Sleep(150 * time.Millisecond)

	if err := d.sendCommand(cmdSLPOUT); err != nil {
		return err
	}
	time.Sleep(120 * time.Millisecond)

	steps := []struct {
		cmd  byte
		data []byte
	}{
		{cmdFRMCTR1, []byte{0x01, 0x2C, 0x2D}},
		{cmdPWCTR1, []byte{0xA2, 0x02, 0x84}},
		{cmdVMCTR1, []byte{0x0E}},
		{cmdINVOFF, nil},
		{cmdCOLMOD, []byte{0x05}}, // 16-bit RGB565
		{cmdMADCTL, []byte{d.madctl(d.rotation)}},
		{cmdNORON, nil},
	}
	for _, s := range steps {
		if err := d.sendCommand(s.cmd); err != nil {
			return err
		}
		if len(s.data) > 0 {
			if err := d.sendData(s.data); err != nil {
				return err
			}
		}
	}

	if err := d.Fill(domain.Black); err != nil {
		return err
	}
	return d.sendCommand(cmdDISPON)
}

func (d *Dev) hardReset() error {
	if d.rst == nil {
		return nil
	}
	if err := d.rst.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.rst.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.rst.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(120 * time.Millisecond)
	return nil
}

// SetBacklight switches the backlight pin, when one is wired.
func (d *Dev) SetBacklight(on bool) error {
	if d.bl == nil {
		return nil
	}
	return d.bl.Out(gpio.Level(on))
}

// SetRotation reprograms MADCTL. Crossing between portrait and landscape
// swaps the addressable dimensions.
func (d *Dev) SetRotation(r domain.Rotation) error {
	if !r.Valid() {
		return fmt.Errorf("st7735: %w: %d", domain.ErrInvalidRotation, r)
	}
	if landscape(r) != landscape(d.rotation) {
		d.w, d.h = d.h, d.w
		d.colOff, d.rowOff = d.rowOff, d.colOff
	}
	d.rotation = r
	if err := d.sendCommand(cmdMADCTL); err != nil {
		return err
	}
	return d.sendData([]byte{d.madctl(r)})
}

func landscape(r domain.Rotation) bool {
	return r == domain.RotationLandscape || r == domain.RotationLandscapeFlipped
}

func (d *Dev) madctl(r domain.Rotation) byte {
	v := madctlByRotation[r]
	if d.bgr {
		v |= madBGR
	}
	return v
}

// DrawPixel writes one pixel. Coordinates outside the panel are dropped,
// matching the controller's own clipping.
func (d *Dev) DrawPixel(x, y int, c domain.Color) error {
	if x < 0 || y < 0 || x >= d.w || y >= d.h {
		return nil
	}
	if err := d.setWindow(x, y, x, y); err != nil {
		return err
	}
	hi, lo := c.Bytes()
	return d.sendData([]byte{hi, lo})
}

// FillRect fills a rectangle, clipped to the panel.
func (d *Dev) FillRect(x, y, w, h int, c domain.Color) error {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > d.w {
		w = d.w - x
	}
	if y+h > d.h {
		h = d.h - y
	}
	if w <= 0 || h <= 0 {
		return nil
	}

	if err := d.setWindow(x, y, x+w-1, y+h-1); err != nil {
		return err
	}

	hi, lo := c.Bytes()
	total := w * h * 2
	chunk := make([]byte, min(total, d.maxTxSize&^1))
	for i := 0; i < len(chunk); i += 2 {
		chunk[i], chunk[i+1] = hi, lo
	}
	for total > 0 {
		n := min(total, len(chunk))
		if err := d.sendData(chunk[:n]); err != nil {
			return err
		}
		total -= n
	}
	return nil
}

// Fill paints the whole panel.
func (d *Dev) Fill(c domain.Color) error {
	return d.FillRect(0, 0, d.w, d.h, c)
}

// Close blanks and powers down the panel.
func (d *Dev) Close() error {
	if err := d.sendCommand(cmdDISPOFF); err != nil {
		return err
	}
	return d.SetBacklight(false)
}

// setWindow programs the CASET/RASET addressing window and opens RAM for
// writing.
func (d *Dev) setWindow(x0, y0, x1, y1 int) error {
	x0 += d.colOff
	x1 += d.colOff
	y0 += d.rowOff
	y1 += d.rowOff

	if err := d.sendCommand(cmdCASET); err != nil {
		return err
	}
	if err := d.sendData([]byte{byte(x0 >> 8), byte(x0), byte(x1 >> 8), byte(x1)}); err != nil {
		return err
	}
	if err := d.sendCommand(cmdRASET); err != nil {
		return err
	}
	if err := d.sendData([]byte{byte(y0 >> 8), byte(y0), byte(y1 >> 8), byte(y1)}); err != nil {
		return err
	}
	return d.sendCommand(cmdRAMWR)
}

func (d *Dev) sendCommand(cmd byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	return d.c.Tx([]byte{cmd}, nil)
}

func (d *Dev) sendData(data []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	return d.c.Tx(data, nil)
}

// String returns a short description for logs.
func (d *Dev) String() string {
	return fmt.Sprintf("st7735.Dev{%dx%d %s}", d.w, d.h, d.rotation)
}
