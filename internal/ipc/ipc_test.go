//go:build !windows

package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/svglive/internal/message"
)

func useSocket(t *testing.T) string {
	t.Helper()
	// Unix socket paths are length-limited; t.TempDir can be too deep.
	dir, err := os.MkdirTemp("", "svglive-ipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "s.sock")
	t.Setenv(EnvSocket, path)
	return path
}

func TestServeAndRequest(t *testing.T) {
	useSocket(t)
	assert.False(t, IsRunning())

	ln, err := Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, func(req *message.Message) *message.Message {
			switch req.Type {
			case message.TypeStatus:
				return &message.Message{Type: message.TypeStatusResponse, Status: &message.Status{State: "listening"}}
			case message.TypeStop:
				return nil
			}
			return message.Errorf("unsupported %s", req.Type)
		}, nil)
	}()

	assert.True(t, IsRunning())

	resp, err := Request(&message.Message{Type: message.TypeStatus})
	require.NoError(t, err)
	require.NotNil(t, resp.Status)
	assert.Equal(t, "listening", resp.Status.State)

	_, err = Request(&message.Message{Type: message.TypeListen})
	assert.ErrorContains(t, err, "unsupported LISTEN")

	_, err = Request(&message.Message{Type: message.TypeStop})
	assert.ErrorContains(t, err, "no response")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestListenRemovesStaleSocket(t *testing.T) {
	path := useSocket(t)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	ln, err := Listen()
	require.NoError(t, err)
	defer ln.Close()
}

func TestRequestWithoutDaemon(t *testing.T) {
	useSocket(t)
	_, err := Request(&message.Message{Type: message.TypeStatus})
	assert.ErrorContains(t, err, "no svglive daemon")
}
