// Package endpoint is the bridge's single outbound websocket connection.
//
// Inbound text frames carry keystrokes and commands for the shell; outbound
// text frames carry decoded shell output. Binary frames are not part of the
// protocol and are skipped on receive.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/acolita/shell-bridge/internal/logging"
)

var (
	// ErrConnect is returned by Dial when the endpoint cannot be reached or
	// refuses the upgrade.
	ErrConnect = errors.New("connect to endpoint failed")

	// ErrStreamClosed is returned by Receive once the inbound stream has
	// ended, whether by a close frame, a network error, or a local Close.
	ErrStreamClosed = errors.New("endpoint stream closed")
)

// Defaults applied by Dial for zero-valued Options fields.
const (
	DefaultDialTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultReadLimit    = 1 << 20
)

// Options configures Dial.
type Options struct {
	URL          string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
	Header       http.Header
	Logger       *slog.Logger
}

// Conn is an established endpoint connection. Send and Receive may be used
// from different goroutines; concurrent Sends are serialized.
type Conn struct {
	ws           *websocket.Conn
	url          string
	writeTimeout time.Duration
	logger       *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Dial opens the connection. Any failure is wrapped in ErrConnect.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: empty url", ErrConnect)
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	redacted := logging.RedactURL(opts.URL)

	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	ws, resp, err := websocket.Dial(dialCtx, opts.URL, &websocket.DialOptions{
		HTTPHeader: opts.Header,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s: http %d: %w", ErrConnect, redacted, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, redacted, err)
	}
	ws.SetReadLimit(opts.ReadLimit)

	logger.Info("endpoint connected", slog.String("url", redacted))

	return &Conn{
		ws:           ws,
		url:          redacted,
		writeTimeout: opts.WriteTimeout,
		logger:       logger,
	}, nil
}

// Send writes text as a single text frame.
func (c *Conn) Send(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	if err := c.ws.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
		return fmt.Errorf("send to %s: %w", c.url, err)
	}
	return nil
}

// Receive blocks until the next text frame arrives and returns its payload.
// Cancelling ctx closes the connection.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				return nil, fmt.Errorf("%w: close status %d: %w", ErrStreamClosed, status, err)
			}
			return nil, fmt.Errorf("%w: %w", ErrStreamClosed, err)
		}
		if typ != websocket.MessageText {
			c.logger.Debug("skipping non-text frame",
				slog.Any("type", typ),
				slog.Int("len", len(data)))
			continue
		}
		return data, nil
	}
}

// Close performs the closing handshake. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		err := c.ws.Close(websocket.StatusNormalClosure, "session ended")
		if err != nil && !isAlreadyClosed(err) {
			c.closeErr = fmt.Errorf("close %s: %w", c.url, err)
		}
	})
	return c.closeErr
}

func isAlreadyClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || websocket.CloseStatus(err) != -1
}
