// Package ipc provides the local Unix-socket channel the CLI tools
// (copy/paste/status/targets) use to talk to a running selport daemon.
// One JSON message per connection in each direction; see internal/message.
package ipc

import (
	"net"
	"os"
)

// SocketPath returns the path of the IPC socket. Override with
// $SELPORT_SOCKET.
func SocketPath() string {
	if s := os.Getenv("SELPORT_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a selport daemon appears to be listening on the
// IPC socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := Dial()
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a net.Listener on the IPC socket path, removing any stale
// socket file from a previous (crashed) run first.
func Listen() (net.Listener, error) {
	path := SocketPath()
	_ = os.Remove(path)
	return listenIPC(path)
}

// Dial connects to the daemon's IPC socket.
func Dial() (net.Conn, error) {
	return dialIPC(SocketPath())
}
