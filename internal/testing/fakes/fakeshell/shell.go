// Package fakeshell provides a fake PTY-backed shell for testing the pump
// and the bridge loop without real terminals.
package fakeshell

import (
	"bytes"
	"io"
	"os"
	"sync"
)

// Shell is a scripted stand-in for pty.Session.
//
// Reads return queued output in order and block while nothing is queued,
// like a real PTY. Once Exit or Close is called, reads drain what is left
// and then return io.EOF.
type Shell struct {
	mu        sync.Mutex
	responses [][]byte
	idx       int
	reads     int
	wake      chan struct{}

	written  bytes.Buffer
	writes   [][]byte
	writeErr error

	exited   chan struct{}
	exitOnce sync.Once
	closed   bool
}

// New creates a new fake shell.
func New() *Shell {
	return &Shell{
		wake:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// AddOutput queues data to be returned by Read. A single chunk may be
// split across several reads when the caller's buffer is smaller.
func (s *Shell) AddOutput(data []byte) *Shell {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, bytes.Clone(data))
	close(s.wake)
	s.wake = make(chan struct{})
	return s
}

// AddOutputs queues several string chunks.
func (s *Shell) AddOutputs(chunks ...string) *Shell {
	for _, c := range chunks {
		s.AddOutput([]byte(c))
	}
	return s
}

// SetWriteError makes every subsequent Write fail with err. Nil clears it.
func (s *Shell) SetWriteError(err error) *Shell {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
	return s
}

// Read implements io.Reader.
func (s *Shell) Read(b []byte) (int, error) {
	for {
		s.mu.Lock()
		if s.idx < len(s.responses) {
			r := s.responses[s.idx]
			n := copy(b, r)
			if n < len(r) {
				s.responses[s.idx] = r[n:]
			} else {
				s.idx++
			}
			s.reads++
			s.mu.Unlock()
			return n, nil
		}
		if s.closed || s.hasExited() {
			s.mu.Unlock()
			return 0, io.EOF
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-wake:
		case <-s.exited:
		}
	}
}

// Write captures data written to the shell's input.
func (s *Shell) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return 0, s.writeErr
	}
	if s.closed {
		return 0, os.ErrClosed
	}
	s.writes = append(s.writes, bytes.Clone(b))
	return s.written.Write(b)
}

// Exit simulates the child process terminating.
func (s *Shell) Exit() {
	s.exitOnce.Do(func() { close(s.exited) })
}

// TryWait reports whether Exit has been called. The fake has no real
// process state to return.
func (s *Shell) TryWait() (*os.ProcessState, bool) {
	return nil, s.hasExited()
}

// Exited is closed once Exit has been called.
func (s *Shell) Exited() <-chan struct{} {
	return s.exited
}

// Close marks the shell closed and unblocks pending reads.
func (s *Shell) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.wake)
		s.wake = make(chan struct{})
	}
	s.mu.Unlock()
	s.Exit()
	return nil
}

func (s *Shell) hasExited() bool {
	select {
	case <-s.exited:
		return true
	default:
		return false
	}
}

// --- Test inspection methods ---

// Written returns everything written to the shell.
func (s *Shell) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.written.Bytes())
}

// Writes returns each Write call's payload separately.
func (s *Shell) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.writes))
	copy(out, s.writes)
	return out
}

// Reads returns the number of Read calls that returned data.
func (s *Shell) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// IsClosed reports whether Close was called.
func (s *Shell) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
