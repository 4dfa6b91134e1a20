//go:build !windows

package ipc

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
)

func socketPath() string {
	// Linux: prefer XDG_RUNTIME_DIR
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" && runtime.GOOS == "linux" {
		return filepath.Join(dir, "svglive.sock")
	}
	// macOS / fallback
	return filepath.Join(os.TempDir(), "svglive.sock")
}

// removeStale deletes a socket file nobody answers on.
func removeStale(path string) {
	if c, err := net.Dial("unix", path); err == nil {
		_ = c.Close()
		return
	}
	_ = os.Remove(path)
}

func listenIPC(path string) (net.Listener, error) {
	return net.Listen("unix", path)
}

func dialIPC(path string) (net.Conn, error) {
	return net.Dial("unix", path)
}
