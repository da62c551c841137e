//go:build windows

package pty

import "syscall"

// pty.Open fails on Windows before this matters.
func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
