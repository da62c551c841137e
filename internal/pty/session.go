// Package pty provides the pseudo-terminal session the bridge drives: one
// shell process attached to the subordinate side of a PTY, with the
// controlling side exposed as a blocking reader and writer.
package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// ErrAllocation is returned by Open when the terminal or the shell cannot be
// brought up. It is fatal for the bridge.
var ErrAllocation = errors.New("pty allocation failed")

// Options configures PTY allocation.
type Options struct {
	Shell string   // Shell to use (defaults to user's shell or /bin/bash)
	Term  string   // Terminal type (default: xterm-256color)
	Rows  uint16   // Terminal rows (default: 24)
	Cols  uint16   // Terminal columns (default: 80)
	Dir   string   // Initial working directory
	Env   []string // Additional environment variables
}

// DefaultOptions returns the fixed 24x80 geometry with the detected shell.
func DefaultOptions() Options {
	return Options{
		Shell: DetectShell(),
		Term:  "xterm-256color",
		Rows:  24,
		Cols:  80,
	}
}

// Session is a PTY pair plus the shell child spawned on it.
type Session struct {
	cmd   *exec.Cmd
	ptmx  *os.File
	shell string
	rows  uint16
	cols  uint16

	exited  chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

// Open allocates a PTY with the given geometry and starts the shell on it.
func Open(opts Options) (*Session, error) {
	if opts.Shell == "" {
		opts.Shell = DetectShell()
	}
	if opts.Term == "" {
		opts.Term = "xterm-256color"
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	if opts.Cols == 0 {
		opts.Cols = 80
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open pty: %w", ErrAllocation, err)
	}

	if err := pty.Setsize(ptmx, &pty.Winsize{Rows: opts.Rows, Cols: opts.Cols}); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, fmt.Errorf("%w: set size: %w", ErrAllocation, err)
	}

	cmd := exec.Command(opts.Shell)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	cmd.Env = append(os.Environ(), "TERM="+opts.Term)
	cmd.Env = append(cmd.Env, opts.Env...)
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, fmt.Errorf("%w: start %s: %w", ErrAllocation, opts.Shell, err)
	}

	// Only the child may hold the subordinate side open, otherwise reads on
	// ptmx never see EOF/EIO when the shell exits.
	_ = tty.Close()

	s := &Session{
		cmd:    cmd,
		ptmx:   ptmx,
		shell:  opts.Shell,
		rows:   opts.Rows,
		cols:   opts.Cols,
		exited: make(chan struct{}),
	}
	go s.reap()

	return s, nil
}

func (s *Session) reap() {
	s.waitErr = s.cmd.Wait()
	close(s.exited)
}

// Read reads shell output from the controlling side. It blocks until data
// is available and returns an error (EIO on Linux) once the shell is gone.
func (s *Session) Read(b []byte) (int, error) {
	return s.ptmx.Read(b)
}

// Write sends b to the shell's input. The controlling side is an unbuffered
// descriptor, so the bytes are with the terminal driver when Write returns.
func (s *Session) Write(b []byte) (int, error) {
	return s.ptmx.Write(b)
}

// TryWait reports whether the shell has exited without blocking. The
// returned state is nil while the shell is running.
func (s *Session) TryWait() (*os.ProcessState, bool) {
	select {
	case <-s.exited:
		return s.cmd.ProcessState, true
	default:
		return nil, false
	}
}

// Exited is closed once the shell has exited and been reaped.
func (s *Session) Exited() <-chan struct{} {
	return s.exited
}

// ExitCode returns the shell's exit code, or -1 while it is running or if
// it was killed by a signal.
func (s *Session) ExitCode() int {
	state, ok := s.TryWait()
	if !ok || state == nil {
		return -1
	}
	return state.ExitCode()
}

// Shell returns the shell being used.
func (s *Session) Shell() string {
	return s.shell
}

// Size returns the fixed terminal geometry.
func (s *Session) Size() (rows, cols uint16) {
	return s.rows, s.cols
}

// Pid returns the shell's process id.
func (s *Session) Pid() int {
	return s.cmd.Process.Pid
}

// Close closes the PTY, kills the shell if it is still running and reaps
// it. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error

		if err := s.ptmx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pty: %w", err))
		}

		select {
		case <-s.exited:
		default:
			if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				errs = append(errs, fmt.Errorf("kill process: %w", err))
			}
			<-s.exited
		}

		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// DetectShell detects the user's default shell.
func DetectShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}

	shells := []string{"/bin/bash", "/bin/zsh", "/bin/sh"}
	for _, shell := range shells {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}

	return "/bin/sh"
}
