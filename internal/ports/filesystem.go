package ports

import (
	"io"
	"io/fs"
)

// FileHandle is an open, writable file.
type FileHandle interface {
	io.WriteCloser

	// Name returns the path the handle was opened with.
	Name() string
}

// FileSystem abstracts the file operations used for configuration and
// session recordings.
type FileSystem interface {
	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// OpenFile opens the named file with the given flags (os.O_*) and mode.
	OpenFile(name string, flag int, perm fs.FileMode) (FileHandle, error)
}
