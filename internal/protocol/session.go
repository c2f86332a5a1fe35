package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/panel-labs/paneld/internal/domain"
	"github.com/panel-labs/paneld/internal/panel"
)

// Protocol literals. The markers are exact: clients send them verbatim.
const (
	selectPrefix = "SELECT:"
	sizePrefix   = "SIZE:"
	cmdPrefix    = "CMD:"
	startMarker  = "BMPStart"
	endMarker    = "BMPEnd"
)

// Config tunes the session's timing and limits.
type Config struct {
	// Timeout is the inactivity limit for the data-phase states
	// (AwaitSize, Receiving, AwaitEnd).
	Timeout time.Duration

	// SelectIdle is how long the session waits in SelectPanel before
	// emitting a single advisory idle notice. Not a timeout: the state
	// never expires.
	SelectIdle time.Duration

	// ProgressRows emits an advisory progress line every N rows while
	// receiving.
	ProgressRows int

	// MaxDimension caps bitmap width and height.
	MaxDimension int
}

// DefaultConfig returns the standard protocol timing.
func DefaultConfig() Config {
	return Config{
		Timeout:      15 * time.Second,
		SelectIdle:   3 * time.Second,
		ProgressRows: 10,
		MaxDimension: 1000,
	}
}

// Session is the transfer protocol state machine. Exactly one exists per
// process; it consumes the link byte stream via Feed, answers on out, and
// resolves panels through the registry without ever owning their lifetime.
//
// Not safe for concurrent use: the driver loop is the only caller.
type Session struct {
	reg *panel.Registry
	out io.Writer
	log zerolog.Logger
	cfg Config
	now func() time.Time

	state  domain.SessionState
	active *panel.Instance

	// Per-transfer counters, zeroed on reset and on completion.
	width, height int
	row, col      int
	offX, offY    int

	lastActivity time.Time
	idleNotified bool

	// Calibration state. Survives protocol resets: the live deltas and
	// frame settings belong to the operator, not to one transfer.
	adj            domain.Adjust
	frameEnabled   bool
	frameColor     domain.Color
	frameThickness int

	buf           []byte
	pixelDrawErrs int
}

// New creates a session over the given registry and response writer.
func New(reg *panel.Registry, out io.Writer, log zerolog.Logger, cfg Config) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.SelectIdle <= 0 {
		cfg.SelectIdle = DefaultConfig().SelectIdle
	}
	if cfg.ProgressRows <= 0 {
		cfg.ProgressRows = DefaultConfig().ProgressRows
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = DefaultConfig().MaxDimension
	}
	s := &Session{
		reg:            reg,
		out:            out,
		log:            log.With().Str("component", "session").Logger(),
		cfg:            cfg,
		now:            time.Now,
		state:          domain.StateSelectPanel,
		frameEnabled:   false,
		frameColor:     domain.White,
		frameThickness: 1,
	}
	s.lastActivity = s.now()
	return s
}

// State returns the current protocol state.
func (s *Session) State() domain.SessionState { return s.state }

// Active returns the selected panel, nil when none is selected.
func (s *Session) Active() *panel.Instance { return s.active }

// Adjustments returns the live calibration deltas.
func (s *Session) Adjustments() domain.Adjust { return s.adj }

// Offset returns the centering offset computed for the in-flight transfer.
func (s *Session) Offset() (x, y int) { return s.offX, s.offY }

// SetClock overrides the time source. Test hook.
func (s *Session) SetClock(now func() time.Time) { s.now = now }

// Feed consumes link input: raw pixel bytes while receiving, otherwise
// newline-terminated tokens. Partial input is buffered between calls.
func (s *Session) Feed(data []byte) {
	if len(data) == 0 {
		return
	}
	s.lastActivity = s.now()
	s.idleNotified = false
	s.buf = append(s.buf, data...)

	for {
		if s.state == domain.StateReceiving {
			s.consumePixels()
			if s.state == domain.StateReceiving {
				return // need more bytes
			}
			continue
		}
		line, ok := s.nextLine()
		if !ok {
			return
		}
		s.handleLine(line)
	}
}

// Tick advances the clocked behavior: the data-phase inactivity timeout and
// the one-shot idle notice while waiting for panel selection. The driver
// loop calls it periodically.
func (s *Session) Tick(now time.Time) {
	if s.state.TimeoutApplies() && now.Sub(s.lastActivity) > s.cfg.Timeout {
		s.log.Warn().Str("state", s.state.String()).Msg("inactivity timeout")
		s.sendError("Timeout waiting for data")
		s.lastActivity = now
		return
	}
	if s.state == domain.StateSelectPanel && !s.idleNotified && now.Sub(s.lastActivity) >= s.cfg.SelectIdle {
		s.respond("Ready for next bitmap")
		s.idleNotified = true
	}
}

// Reset performs the full protocol reset without emitting an error:
// back to SelectPanel, panel deselected, per-transfer counters cleared.
// Calibration deltas and frame settings survive.
func (s *Session) Reset() {
	s.state = domain.StateSelectPanel
	s.active = nil
	s.width, s.height = 0, 0
	s.row, s.col = 0, 0
	s.offX, s.offY = 0, 0
	s.buf = s.buf[:0]
	s.lastActivity = s.now()
}

func (s *Session) nextLine() (string, bool) {
	i := bytes.IndexByte(s.buf, '\n')
	if i < 0 {
		return "", false
	}
	line := strings.TrimSpace(string(s.buf[:i]))
	s.buf = s.buf[i+1:]
	return line, true
}

func (s *Session) handleLine(line string) {
	if line == "" {
		return
	}
	// The command channel is accepted in any state and leaves protocol
	// state alone (CMD:RESET excepted, which is its whole point).
	if rest, ok := strings.CutPrefix(line, cmdPrefix); ok {
		s.dispatch(rest)
		return
	}

	switch s.state {
	case domain.StateSelectPanel:
		s.handleSelect(line)
	case domain.StateAwaitStart:
		s.handleStart(line)
	case domain.StateAwaitSize:
		s.handleSize(line)
	case domain.StateAwaitEnd:
		s.handleEnd(line)
	}
}

func (s *Session) handleSelect(line string) {
	name, ok := strings.CutPrefix(line, selectPrefix)
	if !ok {
		// Indefinite think-time is allowed here; stray input is not a
		// protocol violation.
		s.log.Debug().Str("input", line).Msg("ignoring input while unselected")
		return
	}
	name = strings.TrimSpace(name)
	p, found := s.reg.Get(name)
	if !found {
		s.respond("ERROR: panel not found: %s", name)
		return
	}
	s.active = p
	s.state = domain.StateAwaitStart
	s.respond("PANEL_READY:%s", name)
	s.log.Info().Str("panel", name).Msg("panel selected")
}

func (s *Session) handleStart(line string) {
	if s.active == nil {
		s.sendError("No panel selected")
		return
	}
	if line != startMarker {
		s.sendError("Expected %s, got: %s", startMarker, line)
		return
	}
	s.state = domain.StateAwaitSize
	s.respond("Start marker received")
}

func (s *Session) handleSize(line string) {
	spec, ok := strings.CutPrefix(line, sizePrefix)
	if !ok {
		s.sendError("Expected SIZE, got: %s", line)
		return
	}
	ws, hs, ok := strings.Cut(spec, ",")
	if !ok {
		s.sendError("Invalid size format")
		return
	}
	w, errW := strconv.Atoi(strings.TrimSpace(ws))
	h, errH := strconv.Atoi(strings.TrimSpace(hs))
	if errW != nil || errH != nil {
		s.sendError("Invalid size format")
		return
	}

	if err := s.validateDimensions(w, h); err != nil {
		s.sendError("%s", err)
		return
	}
	offX, offY, err := s.centeringOffset(w, h)
	if err != nil {
		s.sendError("%s", err)
		return
	}

	// Clear before READY so the client never races the wipe.
	if err := s.active.Clear(domain.Black); err != nil {
		s.sendError("Panel clear failed: %s", err)
		return
	}

	s.width, s.height = w, h
	s.offX, s.offY = offX, offY
	s.row, s.col = 0, 0
	s.pixelDrawErrs = 0
	s.state = domain.StateReceiving

	s.respond("READY")
	s.respond("Receiving bitmap: %dx%d at offset (%d,%d)", w, h, offX, offY)
	s.log.Info().Int("width", w).Int("height", h).Int("offX", offX).Int("offY", offY).Msg("transfer started")
}

// validateDimensions enforces the hard maximum and the unadjusted usable
// rectangle. Violations abort the transfer entirely; this is deliberately
// a different policy from the per-pixel crop, which drops silently.
func (s *Session) validateDimensions(w, h int) error {
	g := s.active.Geometry()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("Invalid dimensions: width=%d, height=%d", w, h)
	}
	if w > s.cfg.MaxDimension || h > s.cfg.MaxDimension {
		return fmt.Errorf("Dimensions too large: width=%d, height=%d", w, h)
	}
	if w > g.Usable.W {
		return fmt.Errorf("Width %d exceeds usable width %d", w, g.Usable.W)
	}
	if h > g.Usable.H {
		return fmt.Errorf("Height %d exceeds usable height %d", h, g.Usable.H)
	}
	return nil
}

// centeringOffset centers the bitmap on the usable-rectangle center (floor
// semantics) and verifies both placement corners up front, before any pixel
// is accepted.
func (s *Session) centeringOffset(w, h int) (int, int, error) {
	g := s.active.Geometry()
	offX := g.CenterX - w/2
	offY := g.CenterY - h/2
	if !s.active.InBounds(offX, offY) || !s.active.InBounds(offX+w-1, offY+h-1) {
		return 0, 0, fmt.Errorf("Calculated bitmap position exceeds bounds")
	}
	return offX, offY, nil
}

// consumePixels drains complete 2-byte big-endian pixels from the buffer.
// Pixels landing outside the ADJUSTED usable rectangle are dropped
// silently: that is the cropping mechanism, not an error.
func (s *Session) consumePixels() {
	for len(s.buf) >= 2 && s.state == domain.StateReceiving {
		c := domain.ColorFrom(s.buf[0], s.buf[1])
		s.buf = s.buf[2:]

		x := s.col + s.offX
		y := s.row + s.offY
		if s.active.InAdjustedBounds(x, y, s.adj) {
			if err := s.active.DrawPixel(x, y, c); err != nil {
				s.pixelDrawErrs++
				if s.pixelDrawErrs == 1 {
					s.log.Warn().Err(err).Int("x", x).Int("y", y).Msg("pixel write failed")
				}
			}
		}

		s.col++
		if s.col >= s.width {
			s.col = 0
			s.row++
			if s.row >= s.height {
				s.state = domain.StateAwaitEnd
				return
			}
			if s.row%s.cfg.ProgressRows == 0 {
				s.respond("Progress: %.1f%% (Row %d/%d)", float64(s.row)/float64(s.height)*100, s.row, s.height)
			}
		}
	}
}

func (s *Session) handleEnd(line string) {
	if line != endMarker {
		s.sendError("Expected %s, got: %s", endMarker, line)
		return
	}
	if s.frameEnabled {
		if err := s.active.DrawOverlayFrame(s.frameColor, s.frameThickness); err != nil {
			s.log.Warn().Err(err).Msg("overlay frame failed")
		}
	}
	s.respond("COMPLETE")
	s.log.Info().
		Str("panel", s.active.Name()).
		Int("width", s.width).Int("height", s.height).
		Int("drawErrors", s.pixelDrawErrs).
		Msg("transfer complete")

	// Complete loops straight back to AwaitStart: the selected panel is
	// kept so repeated transfers need no re-select.
	s.state = domain.StateComplete
	s.width, s.height = 0, 0
	s.row, s.col = 0, 0
	s.offX, s.offY = 0, 0
	s.state = domain.StateAwaitStart
	s.respond("Ready for next bitmap")
}

// sendError emits one error line, paints the error on the selected panel,
// and performs the full protocol reset. Never fatal to the process.
func (s *Session) sendError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.respond("ERROR: %s", msg)
	if s.active != nil {
		s.active.PaintError(msg)
	}
	s.Reset()
}

func (s *Session) respond(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(s.out, format+"\r\n", args...); err != nil {
		s.log.Warn().Err(err).Msg("response write failed")
	}
}
