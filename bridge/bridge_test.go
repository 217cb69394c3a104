package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webteller/webteller/creds"
)

var log *zap.SugaredLogger

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	log = l.Sugar()
}

// echoScript prints a ready line and then echoes every input line back.
const echoScript = `echo ready; while read line; do echo "$line"; done`

func newTestClient(t *testing.T, srv *Server) *Client {
	srv.Log = log.Named("bridge")
	httpSrv := httptest.NewServer(srv)
	t.Cleanup(httpSrv.Close)
	return &Client{
		URL:    "ws" + strings.TrimPrefix(httpSrv.URL, "http"),
		Logger: log.Named("client"),
	}
}

func connect(t *testing.T, srv *Server) *Conn {
	client := newTestClient(t, srv)
	conn, err := client.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil drains the output channel until the collected output contains
// want, and returns everything read so far.
func readUntil(t *testing.T, conn *Conn, want string) string {
	t.Helper()
	var got strings.Builder
	deadline := time.After(10 * time.Second)
	for {
		if strings.Contains(got.String(), want) {
			return got.String()
		}
		select {
		case chunk, ok := <-conn.Output():
			if !ok {
				t.Fatalf("session ended before output contained %q, got %q", want, got.String())
			}
			got.WriteString(chunk)
		case <-deadline:
			t.Fatalf("timed out waiting for output to contain %q, got %q", want, got.String())
		}
	}
}

func TestEchoRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, &Server{Command: "sh", Args: []string{"-c", echoScript}})

	readUntil(t, conn, "ready\n")

	require.NoError(t, conn.Send(ctx, "hello"))
	readUntil(t, conn, "hello\n")
	require.NoError(t, conn.Send(ctx, "world"))
	readUntil(t, conn, "world\n")
}

func TestInputOrderPreserved(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, &Server{Command: "sh", Args: []string{"-c", echoScript}})

	readUntil(t, conn, "ready\n")

	for i := 0; i < 20; i++ {
		require.NoError(t, conn.Send(ctx, fmt.Sprintf("line-%d", i)))
	}
	out := readUntil(t, conn, "line-19\n")

	var want strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&want, "line-%d\n", i)
	}
	assert.Contains(t, out, want.String())
}

func TestStderrForwarded(t *testing.T) {
	conn := connect(t, &Server{
		Command: "sh",
		Args:    []string{"-c", `echo ready; echo oops 1>&2; while read line; do :; done`},
	})
	readUntil(t, conn, "oops\n")
}

func TestCredentialMaterialized(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "creds.json")

	conn := connect(t, &Server{
		Command: "sh",
		Args:    []string{"-c", `echo ready; read line; echo 100`},
		Creds:   &creds.Materializer{Log: log, Path: path, Value: "secret123"},
	})

	readUntil(t, conn, "ready\n")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "secret123", string(b))

	require.NoError(t, conn.Send(ctx, "balance"))
	readUntil(t, conn, "100\n")
}

func TestMissingCredentialStillStarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")

	conn := connect(t, &Server{
		Command: "sh",
		Args:    []string{"-c", `echo ready; read line`},
		Creds:   &creds.Materializer{Log: log, Path: path},
	})

	readUntil(t, conn, "ready\n")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessExitNotifiesClient(t *testing.T) {
	conn := connect(t, &Server{Command: "sh", Args: []string{"-c", `echo done`}})

	out := readUntil(t, conn, "process ended\n")
	assert.Contains(t, out, "done\n")

	select {
	case <-conn.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("session did not end after process exit")
	}
}

func TestNonZeroExitReported(t *testing.T) {
	conn := connect(t, &Server{Command: "sh", Args: []string{"-c", `echo going; exit 3`}})
	readUntil(t, conn, "process ended (exit code 3)\n")
}

func TestSpawnFailureReported(t *testing.T) {
	conn := connect(t, &Server{Command: "/nonexistent-program"})

	readUntil(t, conn, "failed to start")
	select {
	case <-conn.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("session did not end after spawn failure")
	}
}

func TestDisconnectKillsSubprocess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")
	script := fmt.Sprintf(`echo $$ > %q; echo ready; while read line; do :; done`, pidFile)

	conn := connect(t, &Server{Command: "sh", Args: []string{"-c", script}})
	readUntil(t, conn, "ready\n")

	b, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	require.NoError(t, err)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		err := syscall.Kill(pid, 0)
		return errors.Is(err, syscall.ESRCH)
	}, 10*time.Second, 50*time.Millisecond, "subprocess still alive after disconnect")
}

func TestInputAfterExitIsDropped(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, &Server{
		Command: "sh",
		Args:    []string{"-c", `echo ready; read line; echo "handled $line"`},
	})

	readUntil(t, conn, "ready\n")
	require.NoError(t, conn.Send(ctx, "first"))

	out := readUntil(t, conn, "process ended\n")
	assert.Contains(t, out, "handled first\n")

	// The subprocess is gone; late input must be dropped, not written to a
	// dead process, and must not stall teardown. The send itself may fail if
	// the server already closed the connection.
	conn.Send(ctx, "late")

	select {
	case <-conn.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("session did not end after process exit with late input in flight")
	}
}

func TestInputBeforeReadyIsDropped(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, &Server{
		Command: "sh",
		Args:    []string{"-c", `sleep 0.5; ` + echoScript},
	})

	// the subprocess has produced no output yet, so this line must be dropped
	require.NoError(t, conn.Send(ctx, "early"))

	readUntil(t, conn, "ready\n")
	require.NoError(t, conn.Send(ctx, "late"))
	out := readUntil(t, conn, "late\n")
	assert.NotContains(t, out, "early")
}
