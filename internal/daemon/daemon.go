// Package daemon wires the clipboard monitor to the conversion pipeline, the
// clipboard writer, the auto-saver and metrics, and answers control requests.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/svglive/internal/clip"
	"go.klb.dev/svglive/internal/convert"
	"go.klb.dev/svglive/internal/message"
	"go.klb.dev/svglive/internal/metrics"
	"go.klb.dev/svglive/internal/monitor"
	"go.klb.dev/svglive/internal/render"
	"go.klb.dev/svglive/internal/save"
)

// DefaultSuppress is the echo-suppression window armed before each write.
const DefaultSuppress = 500 * time.Millisecond

// Config is everything a reload may change.
type Config struct {
	Settings convert.Settings
	Save     save.Config
	Suppress time.Duration
}

// Daemon glues the pieces together. It is the monitor's sink and the
// saver's reporter.
type Daemon struct {
	log      *slog.Logger
	version  string
	started  time.Time
	backend  clip.Backend
	pipeline *convert.Pipeline
	monitor  *monitor.Monitor
	saver    *save.Saver

	suppress atomic.Int64 // time.Duration
	saved    atomic.Int64

	mu           sync.Mutex
	saveCfg      save.Config
	rendererPath string
}

// New builds a daemon around an already configured pipeline. The monitor
// starts stopped; call Monitor().Start or send LISTEN.
func New(backend clip.Backend, pipeline *convert.Pipeline, cfg Config, version string, log *slog.Logger) *Daemon {
	if log == nil {
		log = slog.Default()
	}
	d := &Daemon{
		log:      log,
		version:  version,
		started:  time.Now(),
		backend:  backend,
		pipeline: pipeline,
		saveCfg:  cfg.Save,
	}
	d.setSuppress(cfg.Suppress)
	s := pipeline.Settings()
	d.monitor = monitor.New(backend, pipeline, d, monitor.Config{Debounce: s.Debounce, MaxChars: s.MaxSVGChars}, log)
	d.saver = save.New(cfg.Save, d, log)
	return d
}

func (d *Daemon) Monitor() *monitor.Monitor { return d.monitor }

// Run drives the monitor until ctx is done, then waits for pending saves.
func (d *Daemon) Run(ctx context.Context) error {
	err := d.monitor.Run(ctx)
	d.saver.Wait()
	return err
}

// Apply pushes a reloaded configuration to every component. Conversions
// already running keep the snapshot they started with.
func (d *Daemon) Apply(cfg Config) error {
	if err := d.pipeline.Configure(cfg.Settings); err != nil {
		return err
	}
	d.monitor.Configure(monitor.Config{Debounce: cfg.Settings.Debounce, MaxChars: cfg.Settings.MaxSVGChars})
	d.saver.Configure(cfg.Save)
	d.setSuppress(cfg.Suppress)
	d.mu.Lock()
	d.saveCfg = cfg.Save
	d.mu.Unlock()
	return nil
}

// SetRenderer installs a freshly located renderer; path is shown in status.
func (d *Daemon) SetRenderer(r render.Renderer, path string) {
	d.pipeline.SetRenderer(r)
	d.mu.Lock()
	d.rendererPath = path
	d.mu.Unlock()
}

func (d *Daemon) setSuppress(v time.Duration) {
	if v <= 0 {
		v = DefaultSuppress
	}
	d.suppress.Store(int64(v))
}

func (d *Daemon) OnState(s monitor.State) {
	metrics.SetListening(s == monitor.Listening)
}

// OnConverted puts the PNG on the clipboard and queues the save. The save
// never delays or undoes the clipboard write.
func (d *Daemon) OnConverted(res convert.Result) {
	metrics.RecordConversion(res.Cached(), res.Duration.Seconds(), res.Attempts, len(res.PNG))

	d.monitor.Suppress(time.Duration(d.suppress.Load()))
	err := d.backend.WriteImage(clip.Image{PNG: res.PNG, Width: res.Width, Height: res.Height, DPI: res.DPI})
	if err != nil {
		d.log.Error("clipboard write failed", "err", err)
		metrics.RecordError("clipboard", ErrorKind(err))
	} else {
		d.log.Info("clipboard replaced with png",
			"hash", res.Hash[:min(10, len(res.Hash))],
			"width", res.Width, "height", res.Height,
			"bytes", len(res.PNG), "cached", res.Cached())
	}
	d.saver.Save(res.PNG, res.Hash)
}

func (d *Daemon) OnError(err error) {
	metrics.RecordError("convert", ErrorKind(err))
}

func (d *Daemon) OnSaved(string) {
	d.saved.Add(1)
	metrics.RecordSave(true)
}

func (d *Daemon) OnSaveError(error) {
	metrics.RecordSave(false)
}

// ErrorKind classifies err for metrics labels.
func ErrorKind(err error) string {
	var (
		te  *render.TimeoutError
		re  *render.RenderError
		sle *convert.SizeLimitError
	)
	switch {
	case errors.Is(err, render.ErrRendererMissing):
		return "renderer_missing"
	case errors.As(err, &te):
		return "timeout"
	case errors.As(err, &re):
		return "render"
	case errors.As(err, &sle):
		return "size_limit"
	case errors.Is(err, clip.ErrBusy):
		return "busy"
	default:
		return "other"
	}
}

// Handle answers a control request from the IPC socket.
func (d *Daemon) Handle(req *message.Message) *message.Message {
	switch req.Type {
	case message.TypeStatus:
		return &message.Message{Type: message.TypeStatusResponse, Status: d.Status()}
	case message.TypeListen:
		d.monitor.Start()
		d.log.Info("listen requested", "source", req.Source)
		return &message.Message{Type: message.TypeAck, State: monitor.Listening.String()}
	case message.TypeStop:
		d.monitor.Stop()
		d.log.Info("stop requested", "source", req.Source)
		return &message.Message{Type: message.TypeAck, State: monitor.Stopped.String()}
	default:
		return message.Errorf("unsupported request %q", req.Type)
	}
}

// Status assembles the STATUS_RESPONSE payload.
func (d *Daemon) Status() *message.Status {
	ms := d.monitor.Status()
	s := d.pipeline.Settings()
	r := d.pipeline.Renderer()

	d.mu.Lock()
	path, saveCfg := d.rendererPath, d.saveCfg
	d.mu.Unlock()

	st := &message.Status{
		Version:      d.version,
		PID:          os.Getpid(),
		StartedAt:    d.started,
		State:        ms.State.String(),
		Backend:      ms.Backend,
		RendererPath: path,
		DPI:          s.DPI,
		Background:   s.Background.Hex(),
		MaxBytes:     s.MaxBytes,
		Cache:        s.CacheEnabled,
		Pending:      ms.Pending,
		InFlight:     ms.InFlight,
		LastHash:     ms.LastHash,
		LastWidth:    ms.LastWidth,
		LastHeight:   ms.LastHeight,
		LastTook:     ms.LastTook,
		LastAt:       ms.LastAt,
		Converted:    ms.Converted,
		Failed:       ms.Failed,
		Duplicates:   ms.Duplicates,
		Saved:        int(d.saved.Load()),
		LastError:    ms.LastError,
	}
	if r != nil {
		st.Renderer = r.Name()
	}
	if saveCfg.Enabled {
		st.SaveDir = save.ExpandHome(saveCfg.Dir)
	}
	return st
}
