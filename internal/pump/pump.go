// Package pump moves shell output from a blocking PTY reader onto a bounded
// queue that the bridge loop consumes.
//
// The PTY read is a blocking system call, so the pump runs on its own
// goroutine and the queue (a buffered channel) is the only thing it shares
// with the loop. A full queue blocks the pump rather than dropping output.
package pump

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// DefaultChunkSize is the number of bytes requested per read.
	DefaultChunkSize = 1024

	// DefaultQueueSize is the number of decoded chunks that may be pending
	// before the pump blocks.
	DefaultQueueSize = 100
)

// NewQueue returns the bounded FIFO that connects a Pump to its consumer.
func NewQueue(capacity int) chan string {
	if capacity < 1 {
		capacity = DefaultQueueSize
	}
	return make(chan string, capacity)
}

// Option configures a Pump.
type Option func(*Pump)

// WithChunkSize sets the read size. Values below 4 are ignored so a chunk
// can always hold a complete UTF-8 sequence.
func WithChunkSize(n int) Option {
	return func(p *Pump) {
		if n >= utf8Max {
			p.chunkSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pump) {
		p.logger = l
	}
}

const utf8Max = 4

// Pump reads from r and pushes decoded text chunks onto out.
type Pump struct {
	r         io.Reader
	out       chan<- string
	chunkSize int
	dec       *encoding.Decoder
	logger    *slog.Logger
}

// New creates a pump. It owns r exclusively once Run starts.
func New(r io.Reader, out chan<- string, opts ...Option) *Pump {
	p := &Pump{
		r:         r,
		out:       out,
		chunkSize: DefaultChunkSize,
		dec:       unicode.UTF8.NewDecoder(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reads until the reader is exhausted and closes the queue on return.
//
// End of stream (EOF, EIO from a PTY whose shell exited, a zero-byte read,
// or a closed reader) returns nil. Other read errors are returned. ctx only
// releases a push that is blocked on a full queue during shutdown.
func (p *Pump) Run(ctx context.Context) error {
	defer close(p.out)

	buf := make([]byte, p.chunkSize)
	carry := 0
	for {
		n, err := p.r.Read(buf[carry:])
		if n > 0 {
			text, used := p.decode(buf[:carry+n], false)
			carry = copy(buf, buf[used:carry+n])
			if !p.push(ctx, text) {
				return nil
			}
		}

		if err == nil && n == 0 {
			err = io.EOF
		}
		if err != nil {
			if carry > 0 {
				text, _ := p.decode(buf[:carry], true)
				p.push(ctx, text)
			}
			if isEndOfStream(err) {
				p.logger.Debug("output pump finished", slog.String("reason", err.Error()))
				return nil
			}
			p.logger.Warn("output pump read failed", slog.String("error", err.Error()))
			return err
		}
	}
}

// push enqueues text, blocking while the queue is full. It reports false
// when ctx ended first.
func (p *Pump) push(ctx context.Context, text string) bool {
	if text == "" {
		return true
	}
	select {
	case p.out <- text:
		return true
	case <-ctx.Done():
		return false
	}
}

// decode converts src to valid UTF-8, substituting U+FFFD for invalid
// sequences. Unless atEOF, an incomplete rune at the end of src is left
// unconsumed; used reports how many bytes of src were decoded.
func (p *Pump) decode(src []byte, atEOF bool) (text string, used int) {
	// Each invalid byte can expand to the 3-byte replacement character.
	dst := make([]byte, 3*len(src))
	nDst, nSrc, err := p.dec.Transform(dst, src, atEOF)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		return strings.ToValidUTF8(string(src), "\uFFFD"), len(src)
	}
	return string(dst[:nDst]), nSrc
}

func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, os.ErrClosed)
}
