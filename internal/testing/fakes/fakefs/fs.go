// Package fakefs provides an in-memory FileSystem implementation for testing.
package fakefs

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/acolita/shell-bridge/internal/ports"
)

// FS is an in-memory filesystem for testing.
type FS struct {
	mu    sync.Mutex
	files map[string]*bytes.Buffer
	dirs  map[string]bool

	// MkdirErr and OpenErr, when set, are returned by the matching call.
	MkdirErr error
	OpenErr  error
}

// New creates a new in-memory filesystem.
func New() *FS {
	return &FS{
		files: make(map[string]*bytes.Buffer),
		dirs:  map[string]bool{"/": true},
	}
}

// AddFile seeds a file with content.
func (f *FS) AddFile(name, content string) *FS {
	f.mu.Lock()
	defer f.mu.Unlock()
	name = filepath.Clean(name)
	f.dirs[filepath.Dir(name)] = true
	f.files[name] = bytes.NewBufferString(content)
	return f
}

// ReadFile reads the named file and returns a copy of its contents.
func (f *FS) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = filepath.Clean(name)
	buf, ok := f.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return bytes.Clone(buf.Bytes()), nil
}

// MkdirAll records the directory and its parents.
func (f *FS) MkdirAll(path string, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.MkdirErr != nil {
		return f.MkdirErr
	}
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		f.dirs[p] = true
		if p == "/" || p == "." {
			break
		}
	}
	return nil
}

// OpenFile supports the create/truncate/exclusive subset of os flags.
func (f *FS) OpenFile(name string, flag int, perm fs.FileMode) (ports.FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.OpenErr != nil {
		return nil, f.OpenErr
	}

	name = filepath.Clean(name)
	if !f.dirs[filepath.Dir(name)] {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	buf, exists := f.files[name]
	switch {
	case exists && flag&os.O_EXCL != 0 && flag&os.O_CREATE != 0:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrExist}
	case !exists && flag&os.O_CREATE == 0:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	case !exists:
		buf = &bytes.Buffer{}
		f.files[name] = buf
	case flag&os.O_TRUNC != 0:
		buf.Reset()
	}

	return &handle{fs: f, name: name, buf: buf}, nil
}

// Files returns the paths of all files.
func (f *FS) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	return names
}

type handle struct {
	fs     *FS
	name   string
	buf    *bytes.Buffer
	closed bool
}

func (h *handle) Write(p []byte) (int, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()
	if h.closed {
		return 0, fmt.Errorf("write %s: %w", h.name, os.ErrClosed)
	}
	return h.buf.Write(p)
}

func (h *handle) Close() error {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()
	if h.closed {
		return fmt.Errorf("close %s: %w", h.name, os.ErrClosed)
	}
	h.closed = true
	return nil
}

func (h *handle) Name() string {
	return h.name
}

// Ensure FS implements ports.FileSystem.
var _ ports.FileSystem = (*FS)(nil)
