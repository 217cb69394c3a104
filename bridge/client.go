package bridge

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Client dials a bridge server and drives a session from Go. The browser
// client speaks the same protocol; this one exists for tests and tooling.
type Client struct {
	HTTPClient *http.Client
	URL        string
	Logger     *zap.SugaredLogger
}

// Connect opens a new session. The returned Conn's Output channel must be
// drained; the server does not buffer output.
func (c *Client) Connect(ctx context.Context) (*Conn, error) {
	c.Logger.Debugw("dialing session WebSocket", "URL", c.URL)
	wsConn, _, err := websocket.Dial(ctx, c.URL, &websocket.DialOptions{
		HTTPClient: c.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("establishing session conn: %w", err)
	}
	wsConn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	conn := &Conn{
		log:      c.Logger.Named("session_conn"),
		conn:     wsConn,
		ctx:      ctx,
		cancel:   cancel,
		outputCh: make(chan string),
		doneCh:   make(chan struct{}),
	}
	go conn.readLoop()
	return conn, nil
}

// Conn is the client side of one session.
type Conn struct {
	log    *zap.SugaredLogger
	conn   *websocket.Conn
	ctx    context.Context
	cancel func()

	outputCh chan string
	doneCh   chan struct{}
}

// Output returns the stream of console_output payloads, in the order the
// server sent them. The channel is closed when the session ends.
func (c *Conn) Output() <-chan string {
	return c.outputCh
}

// Done is closed when the session ends, from either side.
func (c *Conn) Done() <-chan struct{} {
	return c.doneCh
}

// Send submits one line of input to the subprocess.
func (c *Conn) Send(ctx context.Context, line string) error {
	return wsjson.Write(ctx, c.conn, Message{Type: TypeCommandEntered, Data: line})
}

// Close ends the session. The server kills the subprocess in response.
func (c *Conn) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	return err
}

func (c *Conn) readLoop() {
	defer close(c.doneCh)
	defer close(c.outputCh)
	for {
		var msg Message
		err := wsjson.Read(c.ctx, c.conn, &msg)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && c.ctx.Err() == nil {
				c.log.Debugf("session read error: %s", err)
			}
			return
		}
		if msg.Type != TypeConsoleOutput {
			c.log.Debugf("ignoring message of type %q", msg.Type)
			continue
		}
		select {
		case c.outputCh <- msg.Data:
		case <-c.ctx.Done():
			return
		}
	}
}
