//go:build windows

package clip

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
	"unsafe"

	"golang.design/x/clipboard"
	"golang.org/x/sys/windows"
)

const (
	windowsPollInterval = 50 * time.Millisecond

	cfDIBV5      = 17
	gmemMoveable = 0x0002
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procOpenClipboard              = user32.NewProc("OpenClipboard")
	procCloseClipboard             = user32.NewProc("CloseClipboard")
	procEmptyClipboard             = user32.NewProc("EmptyClipboard")
	procSetClipboardData           = user32.NewProc("SetClipboardData")
	procRegisterClipboardFormatW   = user32.NewProc("RegisterClipboardFormatW")
	procGetClipboardSequenceNumber = user32.NewProc("GetClipboardSequenceNumber")

	procGlobalAlloc  = kernel32.NewProc("GlobalAlloc")
	procGlobalLock   = kernel32.NewProc("GlobalLock")
	procGlobalUnlock = kernel32.NewProc("GlobalUnlock")
	procGlobalFree   = kernel32.NewProc("GlobalFree")
)

type windowsBackend struct {
	log     *slog.Logger
	dibMax  int
	lastSeq uintptr
	watchCh chan struct{}
	done    chan struct{}
}

// New returns the Windows clipboard backend. Changes are detected through
// GetClipboardSequenceNumber; writes go through the Win32 clipboard API so
// PNG and CF_DIBV5 land in one open/close session.
func New(opts Options) Backend {
	log := opts.logger()
	if err := clipboard.Init(); err != nil {
		log.Warn("clipboard init failed", "err", err)
	}
	b := &windowsBackend{
		log:     log,
		dibMax:  opts.dibMax(),
		lastSeq: sequence(),
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *windowsBackend) Name() string { return "Windows Clipboard" }

func sequence() uintptr {
	seq, _, _ := procGetClipboardSequenceNumber.Call()
	return seq
}

func (b *windowsBackend) poll() {
	t := time.NewTicker(windowsPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			if seq := sequence(); seq != b.lastSeq {
				b.lastSeq = seq
				notify(b.watchCh)
			}
		}
	}
}

func (b *windowsBackend) Read() ([]Item, error) { return readDesign(), nil }

// WriteImage empties the clipboard and sets the registered "PNG" format and,
// when the pixel buffer fits under the DIB ceiling, CF_DIBV5. The session is
// closed on every path; an error after EmptyClipboard is returned, never
// swallowed.
func (b *windowsBackend) WriteImage(img Image) error {
	pngFormat, err := registerFormat("PNG")
	if err != nil {
		return err
	}

	var dib []byte
	if dibFits(img.Width, img.Height, b.dibMax) {
		if dib, err = EncodeDIBV5(img.PNG, img.DPI); err != nil {
			b.log.Warn("skipping CF_DIBV5", "err", err)
			dib = nil
		}
	}

	// The clipboard is owned by the thread that opened it.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := retry(openClipboard, openAttempts, openDelay); err != nil {
		return err
	}
	defer procCloseClipboard.Call()

	if r, _, err := procEmptyClipboard.Call(); r == 0 {
		return fmt.Errorf("EmptyClipboard: %w", err)
	}
	if err := setData(pngFormat, img.PNG); err != nil {
		return fmt.Errorf("set PNG: %w", err)
	}
	if dib != nil {
		if err := setData(cfDIBV5, dib); err != nil {
			return fmt.Errorf("set CF_DIBV5: %w", err)
		}
	}
	b.log.Debug("clipboard image written",
		"png_bytes", len(img.PNG), "dib_bytes", len(dib),
		"width", img.Width, "height", img.Height)
	return nil
}

func (b *windowsBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *windowsBackend) Close()                { close(b.done) }

func openClipboard() error {
	if r, _, err := procOpenClipboard.Call(0); r == 0 {
		return fmt.Errorf("OpenClipboard: %w", err)
	}
	return nil
}

func registerFormat(name string) (uintptr, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	f, _, err := procRegisterClipboardFormatW.Call(uintptr(unsafe.Pointer(p)))
	if f == 0 {
		return 0, fmt.Errorf("RegisterClipboardFormatW(%q): %w", name, err)
	}
	return f, nil
}

// setData copies data into a movable global and hands it to the clipboard,
// which owns the handle once SetClipboardData succeeds.
func setData(format uintptr, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	h, _, err := procGlobalAlloc.Call(gmemMoveable, uintptr(len(data)))
	if h == 0 {
		return fmt.Errorf("GlobalAlloc: %w", err)
	}
	p, _, err := procGlobalLock.Call(h)
	if p == 0 {
		procGlobalFree.Call(h)
		return fmt.Errorf("GlobalLock: %w", err)
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(p)), len(data)), data)
	procGlobalUnlock.Call(h)

	if r, _, err := procSetClipboardData.Call(format, h); r == 0 {
		procGlobalFree.Call(h)
		return fmt.Errorf("SetClipboardData: %w", err)
	}
	return nil
}
