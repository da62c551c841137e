package bridge

import (
	"bytes"
	"strings"
)

// ETX is the interrupt byte (Ctrl+C).
const ETX = 0x03

// etxEscape is the textual form some clients send instead of the raw byte.
const etxEscape = `\x03`

// FrameKind is the classification of an inbound frame.
type FrameKind int

const (
	// FrameCommand is a command line for the shell.
	FrameCommand FrameKind = iota
	// FrameInterrupt asks for a single ETX byte to be written.
	FrameInterrupt
)

func (k FrameKind) String() string {
	switch k {
	case FrameCommand:
		return "command"
	case FrameInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// Classify reports whether frame is an interrupt. A frame is an interrupt
// when it is exactly the ETX byte or its text contains the four characters
// `\x03` anywhere.
func Classify(frame []byte) FrameKind {
	if len(frame) == 1 && frame[0] == ETX {
		return FrameInterrupt
	}
	if bytes.Contains(frame, []byte(etxEscape)) {
		return FrameInterrupt
	}
	return FrameCommand
}

// CommandBytes returns what a command frame writes to the shell: the trimmed
// text with at most one pair of surrounding double quotes removed, then a
// carriage return.
func CommandBytes(frame []byte) []byte {
	line := strings.TrimSpace(string(frame))
	if len(line) >= 2 && line[0] == '"' && line[len(line)-1] == '"' {
		line = line[1 : len(line)-1]
	}
	out := make([]byte, 0, len(line)+1)
	out = append(out, line...)
	return append(out, '\r')
}

// interruptBytes is the exact payload written for an interrupt frame.
func interruptBytes() []byte {
	return []byte{ETX}
}
