// Package ipc provides the local control channel between svglive CLI
// commands (status, listen, stop) and a running daemon.
//
// The channel is a Unix domain socket (a named pipe on Windows) carrying one
// newline-delimited JSON request and one response per connection. A daemon
// answering on the socket is also the single-instance guard: "svglive run"
// refuses to start when one is already listening.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"go.klb.dev/svglive/internal/message"
	"go.klb.dev/svglive/internal/wire"
)

// EnvSocket overrides the socket path.
const EnvSocket = "SVGLIVE_SOCKET"

const requestTimeout = 5 * time.Second

// SocketPath returns the platform-appropriate path for the IPC socket.
//
//   - Linux:   $XDG_RUNTIME_DIR/svglive.sock, else $TMPDIR/svglive.sock
//   - macOS:   $TMPDIR/svglive.sock
//   - Windows: \\.\pipe\svglive
//
// $SVGLIVE_SOCKET overrides all of them.
func SocketPath() string {
	if s := os.Getenv(EnvSocket); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a daemon appears to be listening on the IPC
// socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := dialIPC(SocketPath())
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on the IPC socket, removing a stale socket file
// left by a crashed daemon first.
func Listen() (net.Listener, error) {
	path := SocketPath()
	removeStale(path)
	ln, err := listenIPC(path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	return ln, nil
}

// Handler answers one request.
type Handler func(req *message.Message) *message.Message

// Serve accepts connections until ctx is done or ln fails, answering each
// with h.
func Serve(ctx context.Context, ln net.Listener, h Handler, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go handle(conn, h, log)
	}
}

func handle(conn net.Conn, h Handler, log *slog.Logger) {
	wc := wire.New(conn)
	defer wc.Close()

	wc.SetReadDeadline(requestTimeout)
	req, err := wc.ReadMsg()
	if err != nil {
		log.Debug("ipc read failed", "err", err)
		return
	}
	resp := h(req)
	if resp == nil {
		resp = message.Errorf("no response for %s", req.Type)
	}
	if err := wc.WriteMsg(resp); err != nil {
		log.Debug("ipc write failed", "err", err)
	}
}

// Request sends req to the daemon and returns its answer. An ERROR answer is
// returned as an error.
func Request(req *message.Message) (*message.Message, error) {
	conn, err := dialIPC(SocketPath())
	if err != nil {
		return nil, fmt.Errorf("no svglive daemon on %s: %w", SocketPath(), err)
	}
	wc := wire.New(conn)
	defer wc.Close()

	if err := wc.WriteMsg(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Type, err)
	}
	wc.SetReadDeadline(requestTimeout)
	resp, err := wc.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}
