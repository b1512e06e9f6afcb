package serialmux

import (
	"fmt"
	"strings"
)

// LineKind classifies a line read from the autopilot.
type LineKind int

const (
	LineUnknown LineKind = iota
	LineVehicle          // JSON vehicle state, see telemetry.VehicleTracker
	LineCommand          // plain-text command such as "vision reset"
)

// Classify inspects a line without fully parsing it.
func Classify(line string) LineKind {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineUnknown
	case strings.HasPrefix(line, "{"):
		return LineVehicle
	}
	if _, err := ParseCommand(line); err == nil {
		return LineCommand
	}
	return LineUnknown
}

// Command is an instruction from the autopilot or an operator.
type Command int

const (
	CommandVisionEnable Command = iota + 1
	CommandVisionDisable
	CommandVisionReset
	// CommandGridTransfer asks for the whole occupancy grid to be resent.
	CommandGridTransfer
)

var commandText = map[Command]string{
	CommandVisionEnable:  "vision enable",
	CommandVisionDisable: "vision disable",
	CommandVisionReset:   "vision reset",
	CommandGridTransfer:  "microslam transfer",
}

func (c Command) String() string {
	if s, ok := commandText[c]; ok {
		return s
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// KnownCommands lists the accepted command lines in a stable order.
func KnownCommands() []string {
	out := make([]string, 0, len(commandText))
	for c := CommandVisionEnable; c <= CommandGridTransfer; c++ {
		out = append(out, c.String())
	}
	return out
}

// ParseCommand parses "<target> <action>", case-insensitively and with any
// amount of whitespace.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) != 2 {
		return 0, fmt.Errorf("malformed command %q: want \"<target> <action>\"", line)
	}
	want := fields[0] + " " + fields[1]
	for c, text := range commandText {
		if text == want {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", line)
}
