// Package net has small networking helpers shared by tests.
package net

import (
	"fmt"
	"net"
)

// EphemeralListenAddr reserves a free localhost TCP port and returns it as a
// host:port listen address. The port is released before returning, so another
// process could grab it in between; fine for tests, not for production
// listeners.
func EphemeralListenAddr() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listening to acquire port: %w", err)
	}
	defer listener.Close()
	return listener.Addr().String(), nil
}
