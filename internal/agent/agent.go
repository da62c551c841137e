// Package agent runs one bridged shell session from start to finish:
// connect, open the shell, relay until either side ends, then tear down.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/acolita/shell-bridge/internal/adapters/realclock"
	"github.com/acolita/shell-bridge/internal/adapters/realfs"
	"github.com/acolita/shell-bridge/internal/bridge"
	"github.com/acolita/shell-bridge/internal/config"
	"github.com/acolita/shell-bridge/internal/endpoint"
	"github.com/acolita/shell-bridge/internal/logging"
	"github.com/acolita/shell-bridge/internal/ports"
	"github.com/acolita/shell-bridge/internal/pty"
	"github.com/acolita/shell-bridge/internal/pump"
	"github.com/acolita/shell-bridge/internal/recording"
)

// DefaultShutdownGrace bounds how long teardown waits for the output pump.
// A background job that keeps the terminal open can hold its read forever.
const DefaultShutdownGrace = 2 * time.Second

// Agent owns one connection and one shell session.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger
	fs     ports.FileSystem
	clock  ports.Clock
	grace  time.Duration
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = l
	}
}

// WithFileSystem sets the filesystem used for recordings.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(a *Agent) {
		a.fs = fs
	}
}

// WithClock sets the clock used for recordings.
func WithClock(c ports.Clock) Option {
	return func(a *Agent) {
		a.clock = c
	}
}

// WithShutdownGrace overrides DefaultShutdownGrace.
func WithShutdownGrace(d time.Duration) Option {
	return func(a *Agent) {
		a.grace = d
	}
}

// New creates an agent for a validated configuration.
func New(cfg *config.Config, opts ...Option) *Agent {
	a := &Agent{
		cfg:    cfg,
		logger: slog.Default(),
		fs:     realfs.New(),
		clock:  realclock.New(),
		grace:  DefaultShutdownGrace,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the session. It returns an error only when startup fails:
// errors wrapping endpoint.ErrConnect or pty.ErrAllocation. Shell exit,
// stream closure and cancellation of ctx all return nil.
func (a *Agent) Run(ctx context.Context) error {
	cfg := a.cfg
	sessionID := uuid.NewString()
	logger := a.logger.With(slog.String("session_id", sessionID))

	logger.Info("connecting",
		slog.String("state", bridge.StateConnecting.String()),
		slog.String("url", logging.RedactURL(cfg.Endpoint.URL)))

	conn, err := endpoint.Dial(ctx, endpoint.Options{
		URL:          cfg.Endpoint.URL,
		DialTimeout:  cfg.Endpoint.DialTimeout,
		WriteTimeout: cfg.Endpoint.WriteTimeout,
		ReadLimit:    cfg.Endpoint.ReadLimit,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debug("close endpoint", slog.String("error", err.Error()))
		}
	}()

	sess, err := pty.Open(pty.Options{
		Shell: cfg.Shell.Path,
		Term:  cfg.Shell.Term,
		Rows:  cfg.Shell.Rows,
		Cols:  cfg.Shell.Cols,
		Dir:   cfg.Shell.Dir,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	rows, cols := sess.Size()
	logger.Info("shell started",
		slog.String("shell", sess.Shell()),
		slog.Int("pid", sess.Pid()),
		slog.Int("rows", int(rows)),
		slog.Int("cols", int(cols)))

	bridgeOpts := []bridge.Option{bridge.WithLogger(logger)}
	if rec := a.startRecording(logger, sessionID, sess); rec != nil {
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Warn("close recording", slog.String("error", err.Error()))
			}
		}()
		bridgeOpts = append(bridgeOpts, bridge.WithRecorder(rec))
	}

	queue := pump.NewQueue(cfg.Bridge.QueueSize)
	p := pump.New(sess, queue,
		pump.WithChunkSize(cfg.Bridge.ReadChunkSize),
		pump.WithLogger(logger))
	loop := bridge.New(conn, sess, queue, bridgeOpts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		return p.Run(runCtx)
	})

	loopErr := loop.Run(runCtx)

	// The pump's read only returns once the terminal is gone, and its push
	// only returns once the queue drains or runCtx ends.
	if err := sess.Close(); err != nil {
		logger.Debug("close session", slog.String("error", err.Error()))
	}
	cancel()
	a.waitPump(logger, &g)

	attrs := []any{
		slog.String("state", loop.State().String()),
		slog.String("reason", loop.Reason().String()),
	}
	if loop.Reason() == bridge.ReasonShellExited {
		attrs = append(attrs, slog.Int("exit_code", sess.ExitCode()))
	}
	logger.Info("session ended", attrs...)

	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return fmt.Errorf("bridge: %w", loopErr)
	}
	return nil
}

func (a *Agent) waitPump(logger *slog.Logger, g *errgroup.Group) {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	timer := time.NewTimer(a.grace)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			logger.Debug("output pump stopped with error", slog.String("error", err.Error()))
		}
	case <-timer.C:
		logger.Warn("output pump still blocked after shutdown grace",
			slog.Duration("grace", a.grace))
	}
}

// startRecording returns nil when recording is disabled or cannot start.
// A failed recorder never prevents the session from running.
func (a *Agent) startRecording(logger *slog.Logger, sessionID string, sess *pty.Session) *recording.Recorder {
	if !a.cfg.Recording.Enabled {
		return nil
	}
	rows, cols := sess.Size()
	rec, err := recording.NewRecorder(a.cfg.Recording.Path, recording.Meta{
		SessionID: sessionID,
		Width:     int(cols),
		Height:    int(rows),
		Shell:     sess.Shell(),
		Term:      a.cfg.Shell.Term,
		Title:     "shell-bridge " + logging.RedactURL(a.cfg.Endpoint.URL),
	}, a.fs, a.clock)
	if err != nil {
		logger.Warn("recording disabled", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("recording session", slog.String("path", rec.Path()))
	return rec
}
