package protocol

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/panel-labs/paneld/internal/adapters/fbsim"
	"github.com/panel-labs/paneld/internal/domain"
	"github.com/panel-labs/paneld/internal/panel"
)

// newTestSession wires a session over one simulated panel "A": physical
// 160x128, usable 158x126 at the origin, center (79,63).
func newTestSession(t *testing.T) (*Session, *fbsim.Driver, *bytes.Buffer) {
	t.Helper()
	drv := fbsim.New(160, 128)
	geo := domain.Geometry{
		Name:      "A",
		Model:     "ST7735R",
		PhysicalW: 160,
		PhysicalH: 128,
		Usable:    domain.Rect{X: 0, Y: 0, W: 158, H: 126},
	}
	reg := panel.NewRegistry(zerolog.Nop())
	p := panel.New(geo, drv, zerolog.Nop())
	if err := reg.Add(p); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !reg.InitAll() {
		t.Fatal("InitAll failed")
	}

	out := &bytes.Buffer{}
	return New(reg, out, zerolog.Nop(), DefaultConfig()), drv, out
}

func feedLine(s *Session, line string) {
	s.Feed([]byte(line + "\n"))
}

func pixels(c domain.Color, n int) []byte {
	hi, lo := c.Bytes()
	b := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		b = append(b, hi, lo)
	}
	return b
}

func TestSelectUnknownPanel(t *testing.T) {
	s, _, out := newTestSession(t)

	feedLine(s, "SELECT:nope")
	if !strings.Contains(out.String(), "ERROR: panel not found: nope") {
		t.Fatalf("output = %q", out.String())
	}
	if s.State() != domain.StateSelectPanel {
		t.Fatalf("state = %v, want SelectPanel", s.State())
	}
}

func TestTransferScenario(t *testing.T) {
	s, drv, out := newTestSession(t)

	feedLine(s, "SELECT:A")
	if !strings.Contains(out.String(), "PANEL_READY:A") {
		t.Fatalf("missing PANEL_READY, output = %q", out.String())
	}

	feedLine(s, "BMPStart")
	if s.State() != domain.StateAwaitSize {
		t.Fatalf("state = %v, want AwaitSize", s.State())
	}

	feedLine(s, "SIZE:10,10")
	if !strings.Contains(out.String(), "READY") {
		t.Fatalf("missing READY, output = %q", out.String())
	}
	if x, y := s.Offset(); x != 74 || y != 58 {
		t.Fatalf("offset = (%d,%d), want (74,58)", x, y)
	}
	if s.State() != domain.StateReceiving {
		t.Fatalf("state = %v, want Receiving", s.State())
	}

	s.Feed(pixels(0xF800, 100))
	if s.State() != domain.StateAwaitEnd {
		t.Fatalf("state = %v, want AwaitEnd after all pixels", s.State())
	}

	feedLine(s, "BMPEnd")
	if !strings.Contains(out.String(), "COMPLETE") {
		t.Fatalf("missing COMPLETE, output = %q", out.String())
	}

	if got := drv.At(74, 58); got != 0xF800 {
		t.Fatalf("pixel (74,58) = %#04x, want 0xf800", got)
	}
	if got := drv.At(0, 0); got != domain.Black {
		t.Fatalf("pixel (0,0) = %#04x, want black", got)
	}

	// Complete loops back to AwaitStart with the panel still selected.
	if s.State() != domain.StateAwaitStart {
		t.Fatalf("state = %v, want AwaitStart", s.State())
	}
	if s.Active() == nil || s.Active().Name() != "A" {
		t.Fatal("selected panel must survive completion")
	}
}

func TestRepeatedTransfersWithoutReselect(t *testing.T) {
	s, drv, _ := newTestSession(t)

	feedLine(s, "SELECT:A")
	for i := 0; i < 2; i++ {
		feedLine(s, "BMPStart")
		feedLine(s, "SIZE:2,2")
		s.Feed(pixels(domain.Green, 4))
		feedLine(s, "BMPEnd")
	}
	if s.State() != domain.StateAwaitStart {
		t.Fatalf("state = %v, want AwaitStart", s.State())
	}
	// 2x2 centered: offset (78,62).
	if got := drv.At(78, 62); got != domain.Green {
		t.Fatalf("pixel (78,62) = %#04x, want green", got)
	}
}

func TestOversizedDimensionsReset(t *testing.T) {
	s, _, out := newTestSession(t)

	feedLine(s, "SELECT:A")
	feedLine(s, "BMPStart")
	feedLine(s, "SIZE:2000,10")

	if !strings.Contains(out.String(), "ERROR: Dimensions too large") {
		t.Fatalf("output = %q", out.String())
	}
	if s.State() != domain.StateSelectPanel {
		t.Fatalf("state = %v, want SelectPanel after reset", s.State())
	}
	if s.Active() != nil {
		t.Fatal("reset must deselect the panel")
	}
}

func TestDimensionsExceedingUsableReset(t *testing.T) {
	s, drv, out := newTestSession(t)

	feedLine(s, "SELECT:A")
	feedLine(s, "BMPStart")
	feedLine(s, "SIZE:159,10")

	if !strings.Contains(out.String(), "exceeds usable width") {
		t.Fatalf("output = %q", out.String())
	}
	if s.State() != domain.StateSelectPanel {
		t.Fatalf("state = %v, want SelectPanel", s.State())
	}
	// Validation failure paints the error state.
	if drv.At(100, 100) != domain.Red {
		t.Fatal("error should be painted on the panel")
	}
}

func TestZeroAndNegativeDimensions(t *testing.T) {
	for _, size := range []string{"SIZE:0,10", "SIZE:10,-1", "SIZE:x,10", "SIZE:10"} {
		s, _, out := newTestSession(t)
		feedLine(s, "SELECT:A")
		feedLine(s, "BMPStart")
		feedLine(s, size)
		if !strings.Contains(out.String(), "ERROR") {
			t.Errorf("%s: expected an error, output = %q", size, out.String())
		}
		if s.State() != domain.StateSelectPanel {
			t.Errorf("%s: state = %v, want SelectPanel", size, s.State())
		}
	}
}

func TestWrongStartMarkerResets(t *testing.T) {
	s, _, out := newTestSession(t)

	feedLine(s, "SELECT:A")
	feedLine(s, "NotTheMarker")

	if !strings.Contains(out.String(), "ERROR: Expected BMPStart, got: NotTheMarker") {
		t.Fatalf("output = %q", out.String())
	}
	if s.State() != domain.StateSelectPanel {
		t.Fatalf("state = %v, want SelectPanel", s.State())
	}
}

func TestCroppingAgainstAdjustedBounds(t *testing.T) {
	s, drv, out := newTestSession(t)

	feedLine(s, "SELECT:A")
	// Pull the bottom edge up to y=73 (the inner limit, center 63 + 10).
	feedLine(s, "CMD:ADJUST_BOTTOM:-52")
	if !strings.Contains(out.String(), "OK:Bottom edge adjusted to -52") {
		t.Fatalf("output = %q", out.String())
	}

	feedLine(s, "BMPStart")
	feedLine(s, "SIZE:40,40") // centered: rows 43..82, columns 59..98
	s.Feed(pixels(domain.Cyan, 40*40))
	feedLine(s, "BMPEnd")

	if !strings.Contains(out.String(), "COMPLETE") {
		t.Fatalf("missing COMPLETE, output = %q", out.String())
	}
	// Rows at or above the adjusted bottom edge are written...
	if got := drv.At(59, 73); got != domain.Cyan {
		t.Fatalf("pixel (59,73) = %#04x, want cyan", got)
	}
	// ...rows below it are silently dropped, not errored.
	if got := drv.At(59, 74); got != domain.Black {
		t.Fatalf("pixel (59,74) = %#04x, want black (cropped)", got)
	}
	if strings.Contains(out.String(), "ERROR") {
		t.Fatalf("cropping must not produce errors, output = %q", out.String())
	}
}

func TestTimeoutInReceiving(t *testing.T) {
	s, _, out := newTestSession(t)

	feedLine(s, "SELECT:A")
	feedLine(s, "BMPStart")
	feedLine(s, "SIZE:10,10")
	s.Feed(pixels(domain.Red, 5)) // stall mid-transfer

	s.Tick(time.Now().Add(16 * time.Second))

	if got := strings.Count(out.String(), "ERROR: Timeout waiting for data"); got != 1 {
		t.Fatalf("timeout errors = %d, want exactly 1; output = %q", got, out.String())
	}
	if s.State() != domain.StateSelectPanel {
		t.Fatalf("state = %v, want SelectPanel", s.State())
	}

	// The inactivity clock restarted: an immediate second tick is quiet.
	before := out.Len()
	s.Tick(time.Now().Add(16 * time.Second))
	if strings.Contains(out.String()[before:], "Timeout") {
		t.Fatal("second tick must not emit another timeout")
	}
}

func TestNoTimeoutInExemptStates(t *testing.T) {
	s, _, out := newTestSession(t)

	// SelectPanel: no timeout, one idle notice.
	s.Tick(time.Now().Add(time.Hour))
	s.Tick(time.Now().Add(2 * time.Hour))
	if strings.Contains(out.String(), "Timeout") {
		t.Fatalf("SelectPanel must not time out, output = %q", out.String())
	}
	if got := strings.Count(out.String(), "Ready for next bitmap"); got != 1 {
		t.Fatalf("idle notices = %d, want 1", got)
	}

	// AwaitStart: exempt as well.
	feedLine(s, "SELECT:A")
	s.Tick(time.Now().Add(3 * time.Hour))
	if strings.Contains(out.String(), "Timeout") {
		t.Fatal("AwaitStart must not time out")
	}
	if s.State() != domain.StateAwaitStart {
		t.Fatalf("state = %v, want AwaitStart", s.State())
	}
}

func TestManualResetCommand(t *testing.T) {
	s, _, out := newTestSession(t)

	feedLine(s, "SELECT:A")
	feedLine(s, "BMPStart")
	feedLine(s, "CMD:RESET")

	if !strings.Contains(out.String(), "OK:Protocol reset") {
		t.Fatalf("output = %q", out.String())
	}
	if s.State() != domain.StateSelectPanel || s.Active() != nil {
		t.Fatal("CMD:RESET must perform the full reset")
	}
	if strings.Contains(out.String(), "ERROR") {
		t.Fatal("manual reset must not emit an error")
	}
}

func TestAdjustInnerLimitRejection(t *testing.T) {
	s, _, out := newTestSession(t)

	feedLine(s, "SELECT:A")
	feedLine(s, "CMD:ADJUST_TOP:-54")

	if !strings.Contains(out.String(), "minimum adjustment: -53") {
		t.Fatalf("rejection should name the permitted minimum, output = %q", out.String())
	}
	if s.Adjustments().Top != 0 {
		t.Fatalf("rejected adjustment must leave the delta unchanged, got %d", s.Adjustments().Top)
	}
}

func TestAdjustOuterLimitNotice(t *testing.T) {
	s, _, out := newTestSession(t)

	feedLine(s, "SELECT:A")
	feedLine(s, "CMD:ADJUST_TOP:10") // top edge lands exactly at -10

	if !strings.Contains(out.String(), "OK:Top edge adjusted to 10") {
		t.Fatalf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "NOTICE:Top edge at maximum outward position") {
		t.Fatalf("missing outer-limit notice, output = %q", out.String())
	}
	if s.Adjustments().Top != 10 {
		t.Fatalf("delta = %d, want 10", s.Adjustments().Top)
	}
}

func TestUpdateConfigCommitRoundTrip(t *testing.T) {
	s, _, out := newTestSession(t)

	feedLine(s, "SELECT:A")
	feedLine(s, "CMD:ADJUST_TOP:1")
	feedLine(s, "CMD:ADJUST_LEFT:2")
	feedLine(s, "CMD:UPDATE_CONFIG")

	if !strings.Contains(out.String(), "OK:Base configuration updated") {
		t.Fatalf("output = %q", out.String())
	}
	// Edges moved outward: left -2..157, top -1..125.
	if !strings.Contains(out.String(), "New usable area: -2,157,-1,125") {
		t.Fatalf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "New center: 78,62") {
		t.Fatalf("output = %q", out.String())
	}
	if !s.Adjustments().IsZero() {
		t.Fatalf("deltas after commit = %+v, want zero", s.Adjustments())
	}

	// INFO reads back the committed rectangle and recomputed center.
	out.Reset()
	feedLine(s, "CMD:INFO")
	for _, want := range []string{"Resolution:160x127", "CenterX:78", "CenterY:62", "AdjustTop:0", "AdjustLeft:0"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("INFO missing %q, output = %q", want, out.String())
		}
	}
}

func TestCommandsRequireSelectedPanel(t *testing.T) {
	s, _, out := newTestSession(t)

	for _, cmd := range []string{"CMD:INFO", "CMD:TEST", "CMD:FRAME_ON", "CMD:ADJUST_TOP:1", "CMD:UPDATE_CONFIG", "CMD:ORIENTATION:1", "CMD:CALIBRATE"} {
		out.Reset()
		feedLine(s, cmd)
		if !strings.Contains(out.String(), "ERROR:No panel selected") {
			t.Errorf("%s: output = %q", cmd, out.String())
		}
		if s.State() != domain.StateSelectPanel {
			t.Errorf("%s: command errors must not move protocol state", cmd)
		}
	}
}

func TestCommandChannelDoesNotDisturbProtocol(t *testing.T) {
	s, _, out := newTestSession(t)

	feedLine(s, "SELECT:A")
	feedLine(s, "CMD:LIST")
	if !strings.Contains(out.String(), "OK:PANEL_LIST") {
		t.Fatalf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "A (158x126 usable)") {
		t.Fatalf("output = %q", out.String())
	}
	if s.State() != domain.StateAwaitStart {
		t.Fatalf("state = %v, want AwaitStart after out-of-band command", s.State())
	}

	// Still able to run the transfer afterwards.
	feedLine(s, "BMPStart")
	if s.State() != domain.StateAwaitSize {
		t.Fatalf("state = %v, want AwaitSize", s.State())
	}
}

func TestFrameThicknessValidation(t *testing.T) {
	s, _, out := newTestSession(t)
	feedLine(s, "SELECT:A")

	feedLine(s, "CMD:FRAME_THICKNESS:0")
	if !strings.Contains(out.String(), "ERROR:Thickness must be between 1 and 10") {
		t.Fatalf("output = %q", out.String())
	}
	feedLine(s, "CMD:FRAME_THICKNESS:11")
	if got := strings.Count(out.String(), "ERROR:Thickness must be between 1 and 10"); got != 2 {
		t.Fatalf("thickness errors = %d, want 2", got)
	}

	out.Reset()
	feedLine(s, "CMD:FRAME_THICKNESS:10")
	if !strings.Contains(out.String(), "OK:Frame thickness set to 10") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestOverlayFrameAfterTransfer(t *testing.T) {
	s, drv, _ := newTestSession(t)

	feedLine(s, "SELECT:A")
	feedLine(s, "CMD:FRAME_ON")
	feedLine(s, "BMPStart")
	feedLine(s, "SIZE:4,4")
	s.Feed(pixels(domain.Green, 16))
	feedLine(s, "BMPEnd")

	// Border drawn at the usable-rectangle corners, image untouched.
	if got := drv.At(0, 0); got != domain.White {
		t.Fatalf("pixel (0,0) = %#04x, want white overlay border", got)
	}
	if got := drv.At(78, 62); got != domain.Green {
		t.Fatalf("pixel (78,62) = %#04x, want green image content", got)
	}
}

func TestOrientationCommand(t *testing.T) {
	s, drv, out := newTestSession(t)
	feedLine(s, "SELECT:A")

	feedLine(s, "CMD:ORIENTATION:5")
	if !strings.Contains(out.String(), "ERROR:Invalid orientation") {
		t.Fatalf("output = %q", out.String())
	}

	out.Reset()
	feedLine(s, "CMD:ORIENTATION:2")
	if !strings.Contains(out.String(), "OK:Orientation set to 2") {
		t.Fatalf("output = %q", out.String())
	}
	if drv.Rotation() != domain.RotationPortraitFlipped {
		t.Fatalf("rotation = %v, want reverse portrait", drv.Rotation())
	}
}

func TestUnknownCommand(t *testing.T) {
	s, _, out := newTestSession(t)
	feedLine(s, "CMD:WHATEVER")
	if !strings.Contains(out.String(), "ERROR:unknown command: WHATEVER") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestSplitFeedAcrossChunks(t *testing.T) {
	s, drv, out := newTestSession(t)

	// Lines and pixel data arrive in arbitrary chunk boundaries.
	s.Feed([]byte("SEL"))
	s.Feed([]byte("ECT:A\nBMPSt"))
	s.Feed([]byte("art\nSIZE:2,"))
	s.Feed([]byte("2\n"))
	if s.State() != domain.StateReceiving {
		t.Fatalf("state = %v, want Receiving", s.State())
	}

	px := pixels(domain.Blue, 4)
	s.Feed(px[:3]) // half a pixel left over
	s.Feed(px[3:])
	feedLine(s, "BMPEnd")

	if !strings.Contains(out.String(), "COMPLETE") {
		t.Fatalf("output = %q", out.String())
	}
	if got := drv.At(78, 62); got != domain.Blue {
		t.Fatalf("pixel (78,62) = %#04x, want blue", got)
	}
}
