package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/webteller/webteller/creds"
)

// Session lifecycle states. A session is single-use: once closed it never
// transitions back.
const (
	statePending int32 = iota
	stateRunning
	stateClosed
)

// Server accepts session WebSocket connections and bridges each one to its
// own subprocess. All fields are read-only once serving starts; per-session
// state lives entirely in the session struct.
type Server struct {
	Log *zap.SugaredLogger

	// Command and Args describe the console program to spawn, one instance
	// per connection.
	Command string
	Args    []string

	// Env is appended to the inherited environment of each subprocess. Use it
	// to force unbuffered output for interpreters that detect a non-TTY
	// stdout (e.g. PYTHONUNBUFFERED=1).
	Env []string

	// Dir is the working directory for the subprocess. Empty means inherit.
	Dir string

	// Creds, if non-nil, is materialized before each subprocess starts.
	// Failures are reported to the client but do not abort the session.
	Creds *creds.Materializer
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.Log.Debugf("error accepting WebSocket conn: %s", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	wsConn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sess := &session{
		id:      uuid.NewString(),
		srv:     s,
		conn:    wsConn,
		ctx:     ctx,
		cancel:  cancel,
		stdinCh: make(chan string),
	}
	sess.log = s.Log.Named("session").With("id", sess.id)
	sess.log.Debug("accepted session")
	sess.run()
}

// session bridges one WebSocket connection to one subprocess. Its handles are
// only touched by its own goroutines; sessions share nothing.
type session struct {
	id     string
	log    *zap.SugaredLogger
	srv    *Server
	conn   *websocket.Conn
	ctx    context.Context
	cancel func()

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdinCh chan string

	state     atomic.Int32
	readyOnce sync.Once
	killOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (s *session) run() {
	s.materializeCreds()

	if err := s.start(); err != nil {
		s.log.Debugf("spawn failed: %s", err)
		s.notify(fmt.Sprintf("failed to start %s: %s", s.srv.Command, err))
		s.state.Store(stateClosed)
		s.close(websocket.StatusInternalError, "process failed to start")
		return
	}
	s.log.Debugw("subprocess started", "pid", s.cmd.Process.Pid)

	s.wg.Add(3)
	go s.readMessages()
	go s.pumpStdin()
	go s.waitProcess()

	s.wg.Wait()
	s.log.Debug("session done")
}

// materializeCreds is best-effort: a failed write is reported to the client
// as a console message and the session proceeds without credentials.
func (s *session) materializeCreds() {
	if s.srv.Creds == nil {
		return
	}
	if err := s.srv.Creds.Materialize(); err != nil {
		s.log.Warnf("credential write failed: %s", err)
		s.notify(fmt.Sprintf("warning: could not provision credentials: %s", err))
	}
}

func (s *session) start() error {
	cmd := exec.Command(s.srv.Command, s.srv.Args...)
	cmd.Dir = s.srv.Dir
	if len(s.srv.Env) > 0 {
		cmd.Env = append(os.Environ(), s.srv.Env...)
	}

	// Both output streams go to the client on the same channel, in production
	// order per stream. The first chunk from either marks the session
	// running; there is no fixed warm-up delay.
	cmd.Stdout = &consoleWriter{
		log:          s.log.Named("stdout"),
		ctx:          s.ctx,
		conn:         s.conn,
		onFirstWrite: s.markReady,
	}
	cmd.Stderr = &consoleWriter{
		log:          s.log.Named("stderr"),
		ctx:          s.ctx,
		conn:         s.conn,
		onFirstWrite: s.markReady,
	}

	// StdinPipe hands the subprocess an *os.File, so Wait returns as soon as
	// the process exits instead of waiting for a stdin copier to finish.
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	s.stdin = stdin

	s.cmd = cmd
	return cmd.Start()
}

func (s *session) markReady() {
	s.readyOnce.Do(func() {
		s.state.CompareAndSwap(statePending, stateRunning)
		s.log.Debug("session running")
	})
}

// shutdown tears the session down from any path. Safe to reach from both the
// disconnect path and the natural-exit path; the kill is idempotent.
func (s *session) shutdown() {
	s.killOnce.Do(func() {
		if s.cmd != nil && s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
	})
	s.state.Store(stateClosed)
	s.cancel()
	s.wg.Wait()
}

func (s *session) close(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(code, reason); err != nil {
			s.log.Debugf("error closing conn: %s", err)
		}
	})
}

// notify sends a synthetic status line to the client. Best-effort.
func (s *session) notify(text string) {
	msg := Message{Type: TypeConsoleOutput, Data: text + "\n"}
	if err := wsjson.Write(s.ctx, s.conn, &msg); err != nil {
		s.log.Debugf("error sending status message: %s", err)
	}
}

func (s *session) readMessages() {
	defer s.shutdown()
	defer s.wg.Done()

	closedStdin := false
	closeStdin := func() {
		if !closedStdin {
			close(s.stdinCh)
			closedStdin = true
		}
	}

	for {
		var msg Message
		err := wsjson.Read(s.ctx, s.conn, &msg)
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			s.log.Debug("client closed the session")
			closeStdin()
			return
		}
		if err != nil {
			s.log.Debugf("message reader got error: %s", err)
			closeStdin()
			s.close(websocket.StatusInternalError, "")
			return
		}
		if msg.Type != TypeCommandEntered {
			s.log.Debugf("ignoring message of type %q", msg.Type)
			continue
		}
		if s.state.Load() != stateRunning {
			s.log.Debugf("dropping input, session not running: %q", msg.Data)
			continue
		}
		select {
		case s.stdinCh <- msg.Data:
		case <-s.ctx.Done():
			closeStdin()
			return
		}
	}
}

func (s *session) pumpStdin() {
	defer s.wg.Done()
	defer s.stdin.Close()
	for line := range s.stdinCh {
		if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
			s.log.Debugf("stdin write error: %s", err)
			return
		}
	}
}

func (s *session) waitProcess() {
	defer s.wg.Done()

	err := s.cmd.Wait()
	exitCode := s.cmd.ProcessState.ExitCode()
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			s.log.Debugf("unexpected exit error: %s", err)
		}
	}
	s.log.Debugw("subprocess exited", "code", exitCode)

	// Mark closed before notifying so input racing the exit is dropped
	// rather than written to a dead process.
	s.state.Store(stateClosed)
	if exitCode == 0 {
		s.notify("process ended")
	} else {
		s.notify(fmt.Sprintf("process ended (exit code %d)", exitCode))
	}
	s.close(websocket.StatusNormalClosure, "")
	s.cancel()
}
