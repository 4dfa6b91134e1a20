//go:build darwin

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
//
// NSInteger svglive_changeCount() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
import "C"

import (
	"log/slog"
	"time"

	"golang.design/x/clipboard"
)

const darwinPollInterval = 100 * time.Millisecond

type darwinBackend struct {
	log        *slog.Logger
	lastChange C.NSInteger
	watchCh    chan struct{}
	done       chan struct{}
}

// New returns the macOS clipboard backend.
// clipboard.Init is called here rather than in init() so that CLI sub-commands
// (status, convert) that never construct a Backend don't log spurious
// warnings.
func New(opts Options) Backend {
	log := opts.logger()
	if err := clipboard.Init(); err != nil {
		log.Warn("clipboard unavailable, running headless", "err", err)
		return newHeadless()
	}
	b := &darwinBackend{
		log:        log,
		lastChange: C.svglive_changeCount(),
		watchCh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *darwinBackend) Name() string { return "macOS NSPasteboard" }

func (b *darwinBackend) poll() {
	t := time.NewTicker(darwinPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			cc := C.svglive_changeCount()
			if cc != b.lastChange {
				b.lastChange = cc
				notify(b.watchCh)
			}
		}
	}
}

func (b *darwinBackend) Read() ([]Item, error) { return readDesign(), nil }

// WriteImage clears the pasteboard and declares the PNG in a single
// NSPasteboard transaction.
func (b *darwinBackend) WriteImage(img Image) error {
	clipboard.Write(clipboard.FmtImage, img.PNG)
	b.log.Debug("clipboard image written", "bytes", len(img.PNG), "width", img.Width, "height", img.Height)
	return nil
}

func (b *darwinBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *darwinBackend) Close()                { close(b.done) }
