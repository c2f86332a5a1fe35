package protocol

import (
	"github.com/panel-labs/paneld/internal/domain"
)

// dispatch routes one CMD: line. Commands run out-of-band: apart from
// CMD:RESET they never move the protocol state, and their failures answer
// with an ERROR line while leaving the session exactly where it was.
func (s *Session) dispatch(text string) {
	cmd, err := ParseCommand(text)
	if err != nil {
		s.respond("ERROR:%s", err)
		return
	}

	switch cmd.Kind {
	case CmdList:
		s.cmdList()
	case CmdInfo:
		s.cmdInfo()
	case CmdTest:
		s.cmdTest()
	case CmdTestAll:
		s.cmdTestAll()
	case CmdFrameOn:
		s.cmdFrameOn()
	case CmdFrameOff:
		s.cmdFrameOff()
	case CmdFrameColor:
		s.cmdFrameColor(cmd.Value)
	case CmdFrameThickness:
		s.cmdFrameThickness(cmd.Value)
	case CmdAdjust:
		s.cmdAdjust(cmd.Edge, cmd.Value)
	case CmdCalibrate:
		s.cmdCalibrate()
	case CmdUpdateConfig:
		s.cmdUpdateConfig()
	case CmdOrientation:
		s.cmdOrientation(cmd.Value)
	case CmdReset:
		s.Reset()
		s.respond("OK:Protocol reset")
	case CmdHelp:
		s.cmdHelp()
	}
}

// requireActive answers the shared precondition error for commands that
// operate on the selected panel.
func (s *Session) requireActive() bool {
	if s.active == nil {
		s.respond("ERROR:No panel selected")
		return false
	}
	return true
}

func (s *Session) cmdList() {
	s.respond("OK:PANEL_LIST")
	s.respond("Count:%d", s.reg.Len())
	s.reg.List(s.out)
	s.respond("END_LIST")
}

func (s *Session) cmdInfo() {
	if !s.requireActive() {
		return
	}
	g := s.active.Geometry()
	s.respond("OK:PANEL_INFO")
	s.respond("Name:%s", g.Name)
	s.respond("Resolution:%dx%d", g.Usable.W, g.Usable.H)
	s.respond("Rotation:%d", g.Rotation)
	s.respond("FrameEnabled:%s", yesNo(s.frameEnabled))
	s.respond("FrameColor:%d", s.frameColor)
	s.respond("FrameThickness:%d", s.frameThickness)
	s.respond("AdjustTop:%d", s.adj.Top)
	s.respond("AdjustBottom:%d", s.adj.Bottom)
	s.respond("AdjustLeft:%d", s.adj.Left)
	s.respond("AdjustRight:%d", s.adj.Right)
	s.respond("CenterX:%d", g.CenterX)
	s.respond("CenterY:%d", g.CenterY)
	s.respond("END_INFO")
}

func (s *Session) cmdTest() {
	if !s.requireActive() {
		return
	}
	s.respond("OK:Testing panel %s", s.active.Name())
	if err := s.active.ShowTestPattern(); err != nil {
		s.respond("ERROR:Test pattern failed: %s", err)
		return
	}
	s.respond("Test pattern displayed")
}

func (s *Session) cmdTestAll() {
	s.respond("OK:Testing all panels")
	s.reg.ShowAllTestPatterns()
	s.respond("All test patterns displayed")
}

func (s *Session) cmdFrameOn() {
	if !s.requireActive() {
		return
	}
	s.frameEnabled = true
	if err := s.active.DrawOverlayFrame(s.frameColor, s.frameThickness); err != nil {
		s.log.Warn().Err(err).Msg("overlay frame failed")
	}
	s.respond("OK:Frame enabled")
}

func (s *Session) cmdFrameOff() {
	if !s.requireActive() {
		return
	}
	s.frameEnabled = false
	s.respond("OK:Frame disabled")
}

func (s *Session) cmdFrameColor(v int) {
	if !s.requireActive() {
		return
	}
	s.frameColor = domain.Color(v)
	s.frameEnabled = true
	s.respond("OK:Frame color set to %d", v)
	s.redrawCalibration()
}

func (s *Session) cmdFrameThickness(v int) {
	if !s.requireActive() {
		return
	}
	if v < 1 || v > 10 {
		s.respond("ERROR:Thickness must be between 1 and 10")
		return
	}
	s.frameThickness = v
	s.frameEnabled = true
	s.respond("OK:Frame thickness set to %d", v)
	s.redrawCalibration()
}

func (s *Session) cmdAdjust(edge domain.Edge, delta int) {
	if !s.requireActive() {
		return
	}
	atOuter, err := s.active.Geometry().CheckAdjust(edge, delta)
	if err != nil {
		// Rejected: the stored delta is untouched.
		s.respond("ERROR:%s", err)
		return
	}
	switch edge {
	case domain.EdgeTop:
		s.adj.Top = delta
	case domain.EdgeBottom:
		s.adj.Bottom = delta
	case domain.EdgeLeft:
		s.adj.Left = delta
	case domain.EdgeRight:
		s.adj.Right = delta
	}
	s.respond("OK:%s edge adjusted to %d", edgeTitle(edge), delta)
	if atOuter {
		s.respond("NOTICE:%s edge at maximum outward position (%d pixels beyond published edge)", edgeTitle(edge), domain.OverscanLimit)
	}
	s.redrawCalibration()
}

func (s *Session) cmdCalibrate() {
	if !s.requireActive() {
		return
	}
	s.respond("OK:Showing calibration pattern on %s", s.active.Name())
	s.redrawCalibration()
	s.respond("Calibration pattern displayed")
}

// cmdUpdateConfig commits the four live deltas into the panel's stored
// usable rectangle and center, then zeroes them. Volatile: the config file
// is the durable store and belongs to the calibration tooling.
func (s *Session) cmdUpdateConfig() {
	if !s.requireActive() {
		return
	}
	s.active.Commit(s.adj)
	s.adj = domain.Adjust{}
	g := s.active.Geometry()
	s.respond("OK:Base configuration updated")
	s.respond("New usable area: %d,%d,%d,%d", g.Usable.X, g.Usable.Right(), g.Usable.Y, g.Usable.Bottom())
	s.respond("New center: %d,%d", g.CenterX, g.CenterY)
	s.respond("NOTE:Changes lost on power cycle - update the config file for permanent storage")
}

func (s *Session) cmdOrientation(v int) {
	if !s.requireActive() {
		return
	}
	r := domain.Rotation(v)
	if v < 0 || !r.Valid() {
		s.respond("ERROR:Invalid orientation. Use 0-3 (0=Portrait, 1=Landscape, 2=Reverse Portrait, 3=Reverse Landscape)")
		return
	}
	if err := s.active.SetRotation(r); err != nil {
		s.respond("ERROR:Orientation change failed: %s", err)
		return
	}
	s.respond("OK:Orientation set to %d", v)
}

func (s *Session) cmdHelp() {
	s.respond("OK:HELP")
	s.respond("Available CMD: commands:")
	s.respond("  CMD:LIST - List all panels")
	s.respond("  CMD:INFO - Show selected panel info")
	s.respond("  CMD:TEST - Test selected panel")
	s.respond("  CMD:TEST_ALL - Test all panels")
	s.respond("  CMD:FRAME_ON - Enable image frame")
	s.respond("  CMD:FRAME_OFF - Disable image frame")
	s.respond("  CMD:FRAME_COLOR:value - Set frame color (0-65535)")
	s.respond("  CMD:FRAME_THICKNESS:value - Set frame thickness (1-10)")
	s.respond("  CMD:ADJUST_TOP:value - Adjust top edge (relative to config)")
	s.respond("  CMD:ADJUST_BOTTOM:value - Adjust bottom edge")
	s.respond("  CMD:ADJUST_LEFT:value - Adjust left edge")
	s.respond("  CMD:ADJUST_RIGHT:value - Adjust right edge")
	s.respond("  CMD:CALIBRATE - Show calibration pattern")
	s.respond("  CMD:UPDATE_CONFIG - Commit adjustments to base config")
	s.respond("  CMD:ORIENTATION:value - Set rotation (0-3)")
	s.respond("  CMD:RESET - Reset protocol state")
	s.respond("  CMD:HELP - Show this help")
	s.respond("")
	s.respond("Bitmap protocol:")
	s.respond("  SELECT:<name> - Select target panel")
	s.respond("  %s - Start bitmap transfer", startMarker)
	s.respond("  SIZE:width,height - Set bitmap dimensions")
	s.respond("  <pixel data> - RGB565 pixels, 2 bytes each, big-endian")
	s.respond("  %s - End bitmap transfer", endMarker)
	s.respond("END_HELP")
}

func (s *Session) redrawCalibration() {
	if err := s.active.DrawCalibrationFrame(s.adj, s.frameColor, s.frameThickness); err != nil {
		s.log.Warn().Err(err).Msg("calibration frame failed")
	}
}

func edgeTitle(e domain.Edge) string {
	switch e {
	case domain.EdgeTop:
		return "Top"
	case domain.EdgeBottom:
		return "Bottom"
	case domain.EdgeLeft:
		return "Left"
	case domain.EdgeRight:
		return "Right"
	default:
		return "Unknown"
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
