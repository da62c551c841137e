package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/acolita/shell-bridge/internal/config"
	"github.com/acolita/shell-bridge/internal/endpoint"
	"github.com/acolita/shell-bridge/internal/pty"
	"github.com/acolita/shell-bridge/internal/testing/fakes/fakeclock"
	"github.com/acolita/shell-bridge/internal/testing/fakes/fakefs"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

// operator is the remote side of the bridge as seen from a test.
type operator struct {
	conn *websocket.Conn
	out  chan string
}

// startOperator serves one websocket connection and hands it to the test.
func startOperator(t *testing.T) (string, <-chan *operator) {
	t.Helper()
	ops := make(chan *operator, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("accept error: %v", err)
			return
		}
		defer c.CloseNow()

		op := &operator{conn: c, out: make(chan string, 1024)}
		ops <- op

		ctx := r.Context()
		defer close(op.out)
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText {
				op.out <- string(data)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), ops
}

func (op *operator) send(t *testing.T, frame []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := op.conn.Write(ctx, websocket.MessageText, frame); err != nil {
		t.Fatalf("operator write: %v", err)
	}
}

// expect reads output frames until their concatenation contains want.
func (op *operator) expect(t *testing.T, want string) string {
	t.Helper()
	var sb strings.Builder
	deadline := time.After(10 * time.Second)
	for {
		select {
		case chunk, ok := <-op.out:
			if !ok {
				t.Fatalf("connection ended before %q; got %q", want, sb.String())
			}
			sb.WriteString(chunk)
			if strings.Contains(sb.String(), want) {
				return sb.String()
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q; got %q", want, sb.String())
		}
	}
}

func testConfig(url string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Endpoint.URL = url
	cfg.Endpoint.DialTimeout = 5 * time.Second
	cfg.Shell.Path = "/bin/sh"
	cfg.Shell.Term = "dumb"
	return cfg
}

func runAgent(ctx context.Context, a *Agent) <-chan error {
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return done
}

func waitAgent(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(15 * time.Second):
		t.Fatal("agent did not stop")
		return nil
	}
}

func TestRun_ConnectFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	err := New(testConfig(url)).Run(t.Context())
	if !errors.Is(err, endpoint.ErrConnect) {
		t.Fatalf("Run() error = %v, want ErrConnect", err)
	}
}

func TestRun_ShellFailureIsFatalAndClosesConnection(t *testing.T) {
	url, ops := startOperator(t)
	cfg := testConfig(url)
	cfg.Shell.Path = "/nonexistent/shell-binary"

	err := New(cfg).Run(t.Context())
	if !errors.Is(err, pty.ErrAllocation) {
		t.Fatalf("Run() error = %v, want ErrAllocation", err)
	}

	op := <-ops
	select {
	case _, ok := <-op.out:
		if ok {
			t.Error("unexpected output frame from a failed session")
		}
	case <-time.After(5 * time.Second):
		t.Error("connection left open after startup failure")
	}
}

func TestRun_RelaysUntilShellExits(t *testing.T) {
	requireShell(t)
	url, ops := startOperator(t)
	done := runAgent(t.Context(), New(testConfig(url)))

	op := <-ops
	op.send(t, []byte("echo bridge-$((6*7))\n"))
	op.expect(t, "bridge-42")

	op.send(t, []byte(`"echo quoted-$((2+3))"`))
	op.expect(t, "quoted-5")

	op.send(t, []byte("exit 0\n"))
	if err := waitAgent(t, done); err != nil {
		t.Errorf("Run() error = %v, want nil after shell exit", err)
	}
}

func TestRun_InterruptStopsForegroundCommand(t *testing.T) {
	requireShell(t)
	url, ops := startOperator(t)
	done := runAgent(t.Context(), New(testConfig(url)))

	op := <-ops
	op.send(t, []byte("echo ready-$((1+1))\n"))
	op.expect(t, "ready-2")

	op.send(t, []byte("sleep 30\n"))
	time.Sleep(200 * time.Millisecond)
	op.send(t, []byte{0x03})

	op.send(t, []byte("echo after-$((3+4))\n"))
	op.expect(t, "after-7")

	op.send(t, []byte("exit\n"))
	if err := waitAgent(t, done); err != nil {
		t.Errorf("Run() error: %v", err)
	}
}

func TestRun_StreamClosureEndsSession(t *testing.T) {
	requireShell(t)
	url, ops := startOperator(t)
	done := runAgent(t.Context(), New(testConfig(url)))

	op := <-ops
	op.conn.Close(websocket.StatusNormalClosure, "operator left")

	if err := waitAgent(t, done); err != nil {
		t.Errorf("Run() error = %v, want nil after stream closure", err)
	}
}

func TestRun_CancelEndsSession(t *testing.T) {
	requireShell(t)
	url, ops := startOperator(t)
	ctx, cancel := context.WithCancel(t.Context())
	done := runAgent(ctx, New(testConfig(url)))

	op := <-ops
	op.send(t, []byte("echo up-$((5+5))\n"))
	op.expect(t, "up-10")
	cancel()

	if err := waitAgent(t, done); err != nil {
		t.Errorf("Run() error = %v, want nil on cancellation", err)
	}
}

func TestRun_RecordsSession(t *testing.T) {
	requireShell(t)
	url, ops := startOperator(t)
	cfg := testConfig(url)
	cfg.Recording.Enabled = true
	cfg.Recording.Path = filepath.Join(t.TempDir(), "casts")

	done := runAgent(t.Context(), New(cfg))
	op := <-ops
	op.send(t, []byte("echo rec-$((8*8))\n"))
	op.expect(t, "rec-64")
	op.send(t, []byte("exit\n"))
	if err := waitAgent(t, done); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(cfg.Recording.Path, "*.cast"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("recordings = %v (err %v), want exactly one", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	cast := string(data)
	if !strings.Contains(cast, `"i","exit\r"`) {
		t.Errorf("recording lacks the exit input event:\n%s", cast)
	}
	if !strings.Contains(cast, "rec-64") {
		t.Errorf("recording lacks shell output:\n%s", cast)
	}
}

func TestRun_RecordingFailureDoesNotStopSession(t *testing.T) {
	requireShell(t)
	url, ops := startOperator(t)
	cfg := testConfig(url)
	cfg.Recording.Enabled = true
	cfg.Recording.Path = "/recordings"

	fs := fakefs.New()
	fs.MkdirErr = errors.New("read-only filesystem")
	a := New(cfg, WithFileSystem(fs), WithClock(fakeclock.New(time.Now())))

	done := runAgent(t.Context(), a)
	op := <-ops
	op.send(t, []byte("exit\n"))
	if err := waitAgent(t, done); err != nil {
		t.Errorf("Run() error: %v", err)
	}
	if files := fs.Files(); len(files) != 0 {
		t.Errorf("files = %v, want none", files)
	}
}
