package bridge

// Message type names on the session WebSocket.
const (
	// TypeCommandEntered is sent client->server and carries one line of
	// input for the subprocess's stdin.
	TypeCommandEntered = "command_entered"

	// TypeConsoleOutput is sent server->client and carries a chunk of
	// subprocess stdout/stderr, or a synthetic status line.
	TypeConsoleOutput = "console_output"
)

// Message is the single wire frame exchanged on a session connection, in both
// directions. The browser client produces and consumes the same JSON shape.
type Message struct {
	Type string `json:"type"`
	Data string `json:"data"`
}
