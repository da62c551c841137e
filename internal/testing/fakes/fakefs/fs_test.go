package fakefs

import (
	"errors"
	"io/fs"
	"os"
	"testing"
)

func TestFS_OpenFileRequiresDir(t *testing.T) {
	f := New()
	_, err := f.OpenFile("/rec/a.cast", os.O_CREATE|os.O_WRONLY, 0600)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("OpenFile without dir error = %v, want ErrNotExist", err)
	}

	if err := f.MkdirAll("/rec", 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	h, err := f.OpenFile("/rec/a.cast", os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := h.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := f.ReadFile("/rec/a.cast")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("ReadFile = %q, want %q", data, "hello")
	}
}

func TestFS_Exclusive(t *testing.T) {
	f := New().AddFile("/etc/x", "seed")
	_, err := f.OpenFile("/etc/x", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("exclusive open error = %v, want ErrExist", err)
	}
}

func TestFS_WriteAfterClose(t *testing.T) {
	f := New()
	_ = f.MkdirAll("/tmp", 0755)
	h, _ := f.OpenFile("/tmp/f", os.O_CREATE|os.O_WRONLY, 0600)
	_ = h.Close()
	if _, err := h.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Write after Close error = %v, want ErrClosed", err)
	}
}
