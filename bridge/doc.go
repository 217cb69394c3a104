/*
Package bridge relays an interactive console program to a remote client over a
WebSocket. Each connection owns exactly one subprocess: lines typed by the
client are streamed to the subprocess's stdin, and subprocess stdout & stderr
are streamed back to the client as they are produced.

Subprocesses are scoped to the WebSocket connection--that is, if the
connection dies for any reason, the subprocess is killed. A new connection
always gets a brand-new subprocess; there is no session resumption.

There are two messages in this protocol, both JSON objects with "type" and
"data" fields. "command_entered" messages are sent client->server and carry
one line of input. "console_output" messages are sent server->client and
carry a chunk of subprocess output, or a synthetic status line (for example
when the subprocess exits or fails to start).

The protocol proceeds as follows:

1. The client opens a WebSocket connection with the server.
2. The server materializes the credential file (best-effort) and spawns the
configured subprocess.
3. The subprocess's first output chunk marks the session as running; input
received before that point is dropped.
4. The client and server exchange command_entered and console_output messages
while the subprocess runs.
5. When the subprocess exits, the server sends a final console_output status
message and closes the connection.

No output is buffered server-side and delivery is best-effort: if the client
is gone, output is discarded.
*/
package bridge
