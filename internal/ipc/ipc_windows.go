//go:build windows

package ipc

import (
	"errors"
	"net"
	"os"
	"path/filepath"
)

// selport drives X11 selections; there is no Windows daemon to talk to.
// The stubs keep the CLI compiling so `selport version` etc. still work.

var errUnsupported = errors.New("ipc: not supported on windows")

func socketPath() string {
	return filepath.Join(os.TempDir(), "selport.sock")
}

func listenIPC(string) (net.Listener, error) { return nil, errUnsupported }

func dialIPC(string) (net.Conn, error) { return nil, errUnsupported }
