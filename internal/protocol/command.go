package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/panel-labs/paneld/internal/domain"
)

// CommandKind identifies one out-of-band CMD: command.
type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdList
	CmdInfo
	CmdTest
	CmdTestAll
	CmdFrameOn
	CmdFrameOff
	CmdFrameColor
	CmdFrameThickness
	CmdAdjust
	CmdCalibrate
	CmdUpdateConfig
	CmdOrientation
	CmdReset
	CmdHelp
)

// Command is one parsed CMD: line. Tokenization is separated from dispatch
// so the parser unit-tests without a byte stream; range and state checks
// (thickness limits, adjustment travel, selected panel) stay with dispatch,
// which owns the wire responses.
type Command struct {
	Kind CommandKind

	// Edge is set for CmdAdjust.
	Edge domain.Edge

	// Value carries the numeric payload of CmdFrameColor, CmdFrameThickness,
	// CmdAdjust and CmdOrientation.
	Value int

	// Raw is the original command text, kept for error echoes.
	Raw string
}

var bareCommands = map[string]CommandKind{
	"LIST":          CmdList,
	"INFO":          CmdInfo,
	"TEST":          CmdTest,
	"TEST_ALL":      CmdTestAll,
	"FRAME_ON":      CmdFrameOn,
	"FRAME_OFF":     CmdFrameOff,
	"CALIBRATE":     CmdCalibrate,
	"UPDATE_CONFIG": CmdUpdateConfig,
	"RESET":         CmdReset,
	"HELP":          CmdHelp,
}

var adjustEdges = map[string]domain.Edge{
	"ADJUST_TOP":    domain.EdgeTop,
	"ADJUST_BOTTOM": domain.EdgeBottom,
	"ADJUST_LEFT":   domain.EdgeLeft,
	"ADJUST_RIGHT":  domain.EdgeRight,
}

// ParseCommand tokenizes a command line with the CMD: prefix already
// stripped. It returns an error for unknown names and malformed payloads;
// the returned Command always carries the raw text for echoing.
func ParseCommand(s string) (Command, error) {
	raw := strings.TrimSpace(s)
	cmd := Command{Kind: CmdUnknown, Raw: raw}

	name, arg, hasArg := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)

	if kind, ok := bareCommands[name]; ok {
		if hasArg {
			return cmd, fmt.Errorf("command %s takes no argument", name)
		}
		cmd.Kind = kind
		return cmd, nil
	}

	if edge, ok := adjustEdges[name]; ok {
		v, err := parseArg(name, arg, hasArg)
		if err != nil {
			return cmd, err
		}
		cmd.Kind = CmdAdjust
		cmd.Edge = edge
		cmd.Value = v
		return cmd, nil
	}

	switch name {
	case "FRAME_COLOR":
		v, err := parseArg(name, arg, hasArg)
		if err != nil {
			return cmd, err
		}
		if v < 0 || v > 0xFFFF {
			return cmd, fmt.Errorf("frame color must be 0-65535")
		}
		cmd.Kind = CmdFrameColor
		cmd.Value = v
		return cmd, nil
	case "FRAME_THICKNESS":
		v, err := parseArg(name, arg, hasArg)
		if err != nil {
			return cmd, err
		}
		cmd.Kind = CmdFrameThickness
		cmd.Value = v
		return cmd, nil
	case "ORIENTATION":
		v, err := parseArg(name, arg, hasArg)
		if err != nil {
			return cmd, err
		}
		cmd.Kind = CmdOrientation
		cmd.Value = v
		return cmd, nil
	}

	return cmd, fmt.Errorf("unknown command: %s", raw)
}

func parseArg(name, arg string, hasArg bool) (int, error) {
	if !hasArg || strings.TrimSpace(arg) == "" {
		return 0, fmt.Errorf("command %s requires a value", name)
	}
	v, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("command %s: invalid value %q", name, strings.TrimSpace(arg))
	}
	return v, nil
}
