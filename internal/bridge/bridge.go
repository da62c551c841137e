// Package bridge relays between a remote connection and a local shell.
//
// The loop owns the shell's input and the connection's send side. Output
// reaches it through the queue filled by the pump; inbound frames reach it
// through a receiver goroutine. Each iteration polls the shell's liveness
// and then handles whichever source is ready first.
package bridge

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/acolita/shell-bridge/internal/logging"
)

// Conn is the message channel to the remote operator.
type Conn interface {
	Send(ctx context.Context, text string) error
	Receive(ctx context.Context) ([]byte, error)
}

// Shell is the input side and liveness of the local shell session.
type Shell interface {
	io.Writer
	TryWait() (*os.ProcessState, bool)
	Exited() <-chan struct{}
}

// Recorder receives a copy of everything relayed.
type Recorder interface {
	RecordInput(data string) error
	RecordOutput(data string) error
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithRecorder tees relayed traffic to r.
func WithRecorder(r Recorder) Option {
	return func(b *Bridge) {
		b.recorder = r
	}
}

// previewLen bounds frame and chunk previews in debug logs.
const previewLen = 64

// Bridge is one run of the relay loop.
type Bridge struct {
	conn     Conn
	shell    Shell
	output   <-chan string
	logger   *slog.Logger
	recorder Recorder

	state  atomic.Int32
	reason atomic.Int32
}

// New creates a bridge over an established connection and a running shell.
// output is the queue the shell's pump fills.
func New(conn Conn, shell Shell, output <-chan string, opts ...Option) *Bridge {
	b := &Bridge{
		conn:   conn,
		shell:  shell,
		output: output,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.state.Store(int32(StateConnecting))
	return b
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Reason returns why the loop stopped, or ReasonNone while it runs.
func (b *Bridge) Reason() Reason {
	return Reason(b.reason.Load())
}

// Run relays until the shell exits, the inbound stream closes or ctx ends.
// Shell exit and stream closure are normal terminations and return nil;
// cancellation returns ctx.Err(). Write and send failures are logged and
// do not stop the loop.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.state.Store(int32(StateRunning))
	b.logger.Info("bridge running")

	inbound := make(chan []byte)
	recvErr := make(chan error, 1)
	go b.receive(ctx, inbound, recvErr)

	output := b.output
	for {
		if _, exited := b.shell.TryWait(); exited {
			return b.terminate(ReasonShellExited, nil)
		}

		select {
		case <-ctx.Done():
			return b.terminate(ReasonCancelled, ctx.Err())

		case <-b.shell.Exited():
			return b.terminate(ReasonShellExited, nil)

		case err := <-recvErr:
			if ctx.Err() != nil {
				return b.terminate(ReasonCancelled, ctx.Err())
			}
			b.logger.Info("inbound stream ended", slog.String("error", err.Error()))
			return b.terminate(ReasonStreamClosed, nil)

		case frame := <-inbound:
			b.handleFrame(frame)

		case chunk, ok := <-output:
			if !ok {
				b.logger.Debug("output queue closed")
				output = nil
				continue
			}
			b.forward(ctx, chunk)
		}
	}
}

func (b *Bridge) terminate(reason Reason, err error) error {
	b.reason.Store(int32(reason))
	b.state.Store(int32(StateTerminated))
	b.logger.Info("bridge terminated", slog.String("reason", reason.String()))
	return err
}

// receive feeds inbound frames to the loop in arrival order and reports the
// error that ended the stream.
func (b *Bridge) receive(ctx context.Context, inbound chan<- []byte, recvErr chan<- error) {
	for {
		frame, err := b.conn.Receive(ctx)
		if err != nil {
			recvErr <- err
			return
		}
		select {
		case inbound <- frame:
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge) handleFrame(frame []byte) {
	var payload []byte
	kind := Classify(frame)
	if kind == FrameInterrupt {
		payload = interruptBytes()
		b.logger.Debug("interrupt frame", slog.String("hex", logging.HexDump(frame, previewLen)))
	} else {
		payload = CommandBytes(frame)
		b.logger.Debug("command frame", slog.String("line", logging.Truncate(string(payload), previewLen)))
	}

	if _, err := b.shell.Write(payload); err != nil {
		b.logger.Warn("write to shell failed",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()))
		return
	}
	b.record(b.recordInput, string(payload))
}

func (b *Bridge) forward(ctx context.Context, chunk string) {
	if err := b.conn.Send(ctx, chunk); err != nil {
		b.logger.Warn("send output failed",
			slog.Int("len", len(chunk)),
			slog.String("error", err.Error()))
		return
	}
	b.logger.Debug("output forwarded", slog.String("chunk", logging.Truncate(chunk, previewLen)))
	b.record(b.recordOutput, chunk)
}

func (b *Bridge) recordInput(data string) error  { return b.recorder.RecordInput(data) }
func (b *Bridge) recordOutput(data string) error { return b.recorder.RecordOutput(data) }

func (b *Bridge) record(fn func(string) error, data string) {
	if b.recorder == nil {
		return
	}
	if err := fn(data); err != nil {
		b.logger.Debug("recording failed", slog.String("error", err.Error()))
	}
}
