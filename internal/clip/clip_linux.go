//go:build linux

package clip

import (
	"bytes"
	"log/slog"
	"time"

	"golang.design/x/clipboard"
)

const linuxPollInterval = 250 * time.Millisecond

type linuxBackend struct {
	log      *slog.Logger
	watchCh  chan struct{}
	done     chan struct{}
	lastText []byte
	lastImg  []byte
}

// New returns the Linux clipboard backend, or a headless no-op backend if
// the display environment is unavailable (e.g. a headless server without X11
// or Wayland). clipboard.Init is called here rather than in init() so that
// CLI sub-commands (status, convert) don't trigger the warning.
func New(opts Options) Backend {
	log := opts.logger()
	if err := clipboard.Init(); err != nil {
		log.Warn("clipboard unavailable, running headless", "err", err)
		return newHeadless()
	}
	b := &linuxBackend{
		log:     log,
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *linuxBackend) Name() string { return "Linux clipboard (poll)" }

func (b *linuxBackend) poll() {
	t := time.NewTicker(linuxPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			text := clipboard.Read(clipboard.FmtText)
			img := clipboard.Read(clipboard.FmtImage)
			if !bytes.Equal(text, b.lastText) || !bytes.Equal(img, b.lastImg) {
				b.lastText = text
				b.lastImg = img
				notify(b.watchCh)
			}
		}
	}
}

func (b *linuxBackend) Read() ([]Item, error) { return readDesign(), nil }

// WriteImage publishes the PNG. X11 and Wayland selections carry a single
// owner, so replacing the selection drops the previous text in one step.
func (b *linuxBackend) WriteImage(img Image) error {
	clipboard.Write(clipboard.FmtImage, img.PNG)
	b.log.Debug("clipboard image written", "bytes", len(img.PNG), "width", img.Width, "height", img.Height)
	return nil
}

func (b *linuxBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *linuxBackend) Close()                { close(b.done) }
