//go:build !windows

package pty

import "syscall"

// sysProcAttr makes the shell a session leader with the PTY as its
// controlling terminal (fd 0), so job control and ^C work as on a console.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}
}
