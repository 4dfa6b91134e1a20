// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_darwin.go   macOS via golang.design/x/clipboard + cgo changeCount
//	clip_windows.go  Windows via golang.design/x/clipboard for reads and the
//	                 Win32 clipboard API (golang.org/x/sys/windows) for writes
//	clip_linux.go    Linux via golang.design/x/clipboard, polling only
//	clip_other.go    headless / container stub
package clip

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	MIMEText = "text/plain"
	MIMEPNG  = "image/png"
)

// DefaultDIBMaxBytes bounds the uncompressed pixel buffer written alongside
// the PNG on Windows.
const DefaultDIBMaxBytes = 256 << 20

// Item is a single clipboard representation.
type Item struct {
	MIME string
	Data []byte
}

// Text returns the first text item, if any.
func Text(items []Item) (string, bool) {
	for _, it := range items {
		if it.MIME == MIMEText {
			return string(it.Data), true
		}
	}
	return "", false
}

// HasImage reports whether any item carries image data.
func HasImage(items []Item) bool {
	for _, it := range items {
		if strings.HasPrefix(it.MIME, "image/") && len(it.Data) > 0 {
			return true
		}
	}
	return false
}

// Image is a converted raster ready for the clipboard.
type Image struct {
	PNG    []byte
	Width  int
	Height int
	DPI    int
}

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard contents as a slice of typed items.
	// Returns nil, nil if the clipboard is empty or holds only unsupported types.
	Read() ([]Item, error)

	// WriteImage replaces the clipboard contents with img in every image
	// format the platform supports. Consumers never observe a partial write.
	WriteImage(img Image) error

	// Watch returns a channel that receives a signal whenever the clipboard
	// changes. Signals coalesce; the channel is never closed. The caller
	// should call Read when it receives from the channel.
	Watch() <-chan struct{}

	// Close releases any resources held by the backend.
	Close()
}

// Options configures New.
type Options struct {
	// DIBMaxBytes caps width*height*4 for the CF_DIBV5 payload on Windows.
	// 0 selects DefaultDIBMaxBytes; negative disables the DIB entirely.
	DIBMaxBytes int
	Log         *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Log == nil {
		return slog.Default()
	}
	return o.Log
}

func (o Options) dibMax() int {
	if o.DIBMaxBytes == 0 {
		return DefaultDIBMaxBytes
	}
	return o.DIBMaxBytes
}

// ErrBusy is returned when another process holds the clipboard open for the
// whole retry window.
var ErrBusy = errors.New("clipboard is busy")

const (
	openAttempts = 10
	openDelay    = 50 * time.Millisecond
)

// retry calls open up to attempts times, sleeping delay between tries.
func retry(open func() error, attempts int, delay time.Duration) error {
	var last error
	for i := range attempts {
		if last = open(); last == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrBusy, attempts, last)
}

// notify performs a non-blocking send on a coalescing watch channel.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
