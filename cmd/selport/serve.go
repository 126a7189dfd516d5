package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/selport/internal/backend"
	"go.klb.dev/selport/internal/broker"
	"go.klb.dev/selport/internal/ipc"
	"go.klb.dev/selport/internal/poll"
	"go.klb.dev/selport/internal/wire"
	"go.klb.dev/selport/internal/x11"
)

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the selection daemon",
		Long: `Starts the selport daemon: connects to the X display, subscribes to
selection ownership changes, and serves the copy/paste/status/targets CLI
tools over the IPC socket.

Falls back to a clipboard-polling backend when the display does not support
the selection protocol (no X11, missing XFixes).`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServe(v) },
	}

	f := cmd.Flags()
	f.String("display", "", "X display to connect to (default: $DISPLAY)")
	f.Bool("no-x11", false, "skip the native backend, use clipboard polling")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(v *viper.Viper) error {
	setupLogging(v)

	slog.Info("selport starting", "version", Version)

	if ipc.IsRunning() {
		return fmt.Errorf("another selport daemon is listening on %s", ipc.SocketPath())
	}

	b := pickBackend(v)
	k := broker.New(b)
	if err := k.Start(); err != nil {
		return fmt.Errorf("backend %s: %w", b.Name(), err)
	}
	defer k.Close()
	slog.Info("backend ready", "backend", b.Name())

	ln, err := ipc.Listen()
	if err != nil {
		return fmt.Errorf("ipc listen: %w", err)
	}
	defer ln.Close()
	slog.Info("ipc socket listening", "path", ipc.SocketPath())

	go serveIPC(ln, k)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	slog.Info("shutting down", "signal", s)
	return nil
}

// pickBackend selects the backend variant once at startup: the native
// selection engine when the display supports it, clipboard polling
// otherwise.
func pickBackend(v *viper.Viper) backend.Backend {
	if !v.GetBool("no-x11") {
		b, err := x11.New(v.GetString("display"))
		if err == nil {
			return b
		}
		slog.Warn("x11 selection backend unavailable", "err", err)
	}
	return poll.New()
}

func serveIPC(ln net.Listener, k *broker.Broker) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go handleIPCConn(conn, k)
	}
}

// ipcReadTimeout bounds how long a connected client may sit silent before
// its slot is reclaimed.
const ipcReadTimeout = 10 * time.Second

// handleIPCConn answers one request per connection: read a message, route
// it through the broker, write the response.
func handleIPCConn(conn net.Conn, k *broker.Broker) {
	defer conn.Close()
	wc := wire.New(conn)
	wc.SetReadDeadline(ipcReadTimeout)

	msg, err := wc.ReadMsg()
	if err != nil {
		slog.Debug("ipc read failed", "err", err)
		return
	}
	if err := wc.WriteMsg(k.Handle(msg)); err != nil {
		slog.Debug("ipc write failed", "err", err)
	}
}
