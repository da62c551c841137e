// Package recording captures a bridged shell session in asciicast v2 format
// so it can be replayed with asciinema.
package recording

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/acolita/shell-bridge/internal/ports"
)

// Recorder appends terminal I/O events to a .cast file.
// See: https://docs.asciinema.org/manual/asciicast/v2/
type Recorder struct {
	mu        sync.Mutex
	file      ports.FileHandle
	startTime time.Time
	closed    bool
	clock     ports.Clock
}

// Header is the asciicast v2 header.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is an asciicast v2 event [time, type, data].
type Event struct {
	Time float64 `json:"-"`
	Type string  `json:"-"`
	Data string  `json:"-"`
}

// MarshalJSON encodes the event as a three-element array.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Time, e.Type, e.Data})
}

// Meta describes the session being recorded.
type Meta struct {
	SessionID string
	Width     int
	Height    int
	Shell     string
	Term      string
	Title     string
}

// NewRecorder creates <basePath>/<session-id>_<timestamp>.cast and writes
// the header. The file is created exclusively.
func NewRecorder(basePath string, meta Meta, fs ports.FileSystem, clock ports.Clock) (*Recorder, error) {
	if meta.SessionID == "" {
		return nil, errors.New("recording needs a session id")
	}
	if err := fs.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}

	start := clock.Now()
	filename := fmt.Sprintf("%s_%s.cast", meta.SessionID, start.Format("20060102_150405"))
	fullPath := filepath.Join(basePath, filename)

	file, err := fs.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}

	header := Header{
		Version:   2,
		Width:     meta.Width,
		Height:    meta.Height,
		Timestamp: start.Unix(),
		Title:     meta.Title,
	}
	if meta.Shell != "" || meta.Term != "" {
		header.Env = map[string]string{}
		if meta.Shell != "" {
			header.Env["SHELL"] = meta.Shell
		}
		if meta.Term != "" {
			header.Env["TERM"] = meta.Term
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if _, err := file.Write(append(headerJSON, '\n')); err != nil {
		file.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	return &Recorder{
		file:      file,
		startTime: start,
		clock:     clock,
	}, nil
}

// RecordOutput records shell output sent to the operator.
func (r *Recorder) RecordOutput(data string) error {
	return r.record("o", data)
}

// RecordInput records bytes written to the shell.
func (r *Recorder) RecordInput(data string) error {
	return r.record("i", data)
}

func (r *Recorder) record(eventType, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	event := Event{
		Time: r.clock.Now().Sub(r.startTime).Seconds(),
		Type: eventType,
		Data: data,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := r.file.Write(append(eventJSON, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close closes the file. Events recorded afterwards are dropped.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Path returns the recording file path.
func (r *Recorder) Path() string {
	return r.file.Name()
}
