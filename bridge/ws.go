package bridge

import (
	"context"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const readLimit = 32768

// consoleWriter forwards subprocess output over the WebSocket as
// console_output messages. Send failures are swallowed: if the client is
// gone, output is discarded rather than surfaced as a subprocess I/O error;
// the disconnect path kills the subprocess shortly after anyway.
type consoleWriter struct {
	log  *zap.SugaredLogger
	ctx  context.Context
	conn *websocket.Conn

	// onFirstWrite, if non-nil, is invoked before the first chunk is sent.
	// The bridge uses it as the readiness signal for the session.
	onFirstWrite func()
	wroteOnce    bool
}

func (w *consoleWriter) Write(b []byte) (int, error) {
	if !w.wroteOnce {
		w.wroteOnce = true
		if w.onFirstWrite != nil {
			w.onFirstWrite()
		}
	}

	// break the output into chunks based on max message size
	// the write limit is conservative, we are estimating the final encoded json size
	writeLimit := readLimit / 3
	leftToWrite := b
	for {
		toWrite := leftToWrite
		more := false
		if len(leftToWrite) > writeLimit {
			toWrite = toWrite[:writeLimit]
			leftToWrite = leftToWrite[writeLimit:]
			more = true
		}

		msg := Message{Type: TypeConsoleOutput, Data: string(toWrite)}
		if err := wsjson.Write(w.ctx, w.conn, &msg); err != nil {
			w.log.Debugf("dropping %d output bytes, send failed: %s", len(toWrite), err)
			return len(b), nil
		}
		if !more {
			return len(b), nil
		}
	}
}
