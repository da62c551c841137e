package bridge

import (
	"bytes"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  FrameKind
	}{
		{"raw etx", []byte{0x03}, FrameInterrupt},
		{"escaped etx", []byte(`\x03`), FrameInterrupt},
		{"escaped etx inside text", []byte(`echo \x03 here`), FrameInterrupt},
		{"plain command", []byte("ls -la"), FrameCommand},
		{"two raw etx bytes", []byte{0x03, 0x03}, FrameCommand},
		{"etx followed by newline", []byte{0x03, '\n'}, FrameCommand},
		{"empty", []byte{}, FrameCommand},
		{"other escape", []byte(`\x04`), FrameCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.frame); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.frame, got, tt.want)
			}
		})
	}
}

func TestCommandBytes(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"trailing newline", "ls\n", "ls\r"},
		{"quoted", `"pwd"`, "pwd\r"},
		{"quoted with outer whitespace", "  \"echo hi\"\t\n", "echo hi\r"},
		{"only one quote layer", `""x""`, `"x"` + "\r"},
		{"inner quotes kept", `echo "a b"`, `echo "a b"` + "\r"},
		{"unbalanced leading quote", `"abc`, `"abc` + "\r"},
		{"unbalanced trailing quote", `abc"`, `abc"` + "\r"},
		{"lone quote", `"`, `"` + "\r"},
		{"empty quotes", `""`, "\r"},
		{"empty", "", "\r"},
		{"whitespace only", " \t\r\n", "\r"},
		{"inner whitespace kept", "echo  a   b", "echo  a   b\r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CommandBytes([]byte(tt.frame))
			if !bytes.Equal(got, []byte(tt.want)) {
				t.Errorf("CommandBytes(%q) = %q, want %q", tt.frame, got, tt.want)
			}
		})
	}
}

func TestInterruptBytes(t *testing.T) {
	if got := interruptBytes(); !bytes.Equal(got, []byte{0x03}) {
		t.Errorf("interruptBytes() = %v, want [3]", got)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateConnecting: "connecting",
		StateRunning:    "running",
		StateTerminated: "terminated",
		State(42):       "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
