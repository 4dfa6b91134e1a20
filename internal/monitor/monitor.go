// Package monitor watches the clipboard for SVG markup and feeds it to a
// converter, one job at a time.
//
// All state lives on the goroutine running Run. Clipboard notifications,
// debounce expiry, job completion and control requests are events on that
// loop; the conversion itself runs on a single worker goroutine so results
// arrive in dispatch order.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/svglive/internal/clip"
	"go.klb.dev/svglive/internal/convert"
	"go.klb.dev/svglive/internal/memo"
	"go.klb.dev/svglive/internal/svg"
)

// State is the listening state of a Monitor.
type State int

const (
	Stopped State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "stopped"
}

// Converter turns normalized SVG text into a PNG.
type Converter interface {
	Convert(ctx context.Context, svgText string) (convert.Result, error)
}

// Sink receives everything the monitor emits. Calls are made from the
// monitor's loop goroutine, one at a time.
type Sink interface {
	OnState(State)
	OnConverted(convert.Result)
	OnError(error)
}

// Config is the part of the settings the monitor reads.
type Config struct {
	Debounce time.Duration
	MaxChars int // 0 = unlimited
}

// Status is a point-in-time snapshot for the control socket.
type Status struct {
	State      State
	Backend    string
	Pending    bool
	InFlight   bool
	LastHash   string
	LastWidth  int
	LastHeight int
	LastTook   time.Duration
	LastAt     time.Time
	Converted  int
	Failed     int
	Duplicates int
	LastError  string
}

type jobResult struct {
	res convert.Result
	err error
}

// Monitor is the Listening/Stopped clipboard state machine.
type Monitor struct {
	backend clip.Backend
	conv    Converter
	sink    Sink
	log     *slog.Logger

	ctl         chan func()
	results     chan jobResult
	ignoreUntil atomic.Int64 // unix nanos

	// Owned by the Run goroutine.
	cfg      Config
	state    State
	pending  string
	inFlight bool
	rerun    bool
	lastHash string
	timer    *time.Timer
	armed    bool
	work     chan string

	statusMu sync.Mutex
	status   Status
}

// New returns a stopped monitor. Call Run to drive it and Start to begin
// listening.
func New(backend clip.Backend, conv Converter, sink Sink, cfg Config, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	t := time.NewTimer(time.Hour)
	t.Stop()
	m := &Monitor{
		backend: backend,
		conv:    conv,
		sink:    sink,
		log:     log.With("component", "monitor"),
		ctl:     make(chan func(), 16),
		results: make(chan jobResult, 1),
		cfg:     cfg,
		timer:   t,
		work:    make(chan string, 1),
	}
	m.status.Backend = backend.Name()
	return m
}

// Start switches to Listening. Safe to call from any goroutine.
func (m *Monitor) Start() { m.ctl <- m.start }

// Stop switches to Stopped, dropping pending text and any armed debounce.
// A conversion already running completes and is still delivered.
func (m *Monitor) Stop() { m.ctl <- m.stop }

// Configure applies cfg to clipboard changes seen from now on.
func (m *Monitor) Configure(cfg Config) {
	m.ctl <- func() { m.cfg = cfg }
}

// Suppress ignores clipboard notifications for d. Call it right before
// writing the clipboard so the write does not trigger another conversion.
func (m *Monitor) Suppress(d time.Duration) {
	until := time.Now().Add(d).UnixNano()
	for {
		cur := m.ignoreUntil.Load()
		if cur >= until || m.ignoreUntil.CompareAndSwap(cur, until) {
			return
		}
	}
}

func (m *Monitor) Status() Status {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	return m.status
}

// Run processes events until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	go m.worker(ctx)
	defer m.timer.Stop()

	for {
		var watch <-chan struct{}
		if m.state == Listening {
			watch = m.backend.Watch()
		}
		var fire <-chan time.Time
		if m.armed {
			fire = m.timer.C
		}

		select {
		case <-ctx.Done():
			return nil
		case fn := <-m.ctl:
			fn()
		case <-watch:
			m.onChange()
		case <-fire:
			m.armed = false
			m.onDebounce()
		case r := <-m.results:
			m.onDone(r)
		}
		m.publish()
	}
}

// worker is the single background execution slot.
func (m *Monitor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-m.work:
			res, err := m.conv.Convert(ctx, text)
			select {
			case m.results <- jobResult{res: res, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (m *Monitor) start() {
	if m.state == Listening {
		return
	}
	// Drop a change signalled while stopped; only later changes count.
	select {
	case <-m.backend.Watch():
	default:
	}
	m.state = Listening
	m.log.Info("listening", "backend", m.backend.Name(), "debounce", m.cfg.Debounce)
	m.sink.OnState(Listening)
}

func (m *Monitor) stop() {
	if m.state == Stopped {
		return
	}
	m.state = Stopped
	m.pending = ""
	m.rerun = false
	m.disarm()
	m.log.Info("stopped")
	m.sink.OnState(Stopped)
}

func (m *Monitor) arm(d time.Duration) {
	m.timer.Reset(d)
	m.armed = true
}

func (m *Monitor) disarm() {
	m.timer.Stop()
	m.armed = false
}

func (m *Monitor) onChange() {
	if time.Now().UnixNano() < m.ignoreUntil.Load() {
		m.log.Debug("ignoring own clipboard write")
		return
	}
	items, err := m.backend.Read()
	if err != nil {
		m.log.Warn("clipboard read failed", "err", err)
		return
	}
	clip.LogItems(m.log, "clipboard changed", items)
	if clip.HasImage(items) {
		return
	}
	text, ok := clip.Text(items)
	if !ok || text == "" {
		return
	}
	if svg.TooLong(text, m.cfg.MaxChars) {
		m.log.Info("clipboard text too large", "chars", len(text), "limit", m.cfg.MaxChars)
		return
	}
	norm, ok := svg.Normalize(text, m.cfg.MaxChars)
	if !ok {
		return
	}
	m.pending = norm
	m.arm(m.cfg.Debounce)
}

func (m *Monitor) onDebounce() {
	if m.state != Listening || m.pending == "" {
		return
	}
	if m.inFlight {
		// The latest text stays pending and is reconsidered when the job ends.
		m.rerun = true
		return
	}

	items, err := m.backend.Read()
	if err != nil {
		m.log.Warn("clipboard read failed", "err", err)
		return
	}
	text, ok := clip.Text(items)
	if !ok {
		return
	}
	// The length guard already passed for pending, so equality suffices.
	current, ok := svg.Normalize(text, 0)
	if !ok || current != m.pending {
		m.log.Debug("clipboard changed during debounce")
		return
	}

	m.pending = ""
	hash := memo.Hash(current)
	if hash == m.lastHash {
		m.log.Debug("skipping duplicate", "hash", hash[:10])
		m.statusMu.Lock()
		m.status.Duplicates++
		m.statusMu.Unlock()
		return
	}

	m.inFlight = true
	m.work <- current
	m.log.Debug("conversion dispatched", "hash", hash[:10], "chars", len(current))
}

func (m *Monitor) onDone(r jobResult) {
	m.inFlight = false

	m.statusMu.Lock()
	if r.err != nil {
		m.status.Failed++
		m.status.LastError = r.err.Error()
	} else {
		m.status.Converted++
		m.status.LastError = ""
		m.status.LastHash = r.res.Hash
		m.status.LastWidth = r.res.Width
		m.status.LastHeight = r.res.Height
		m.status.LastTook = r.res.Duration
		m.status.LastAt = time.Now()
	}
	m.statusMu.Unlock()

	if r.err != nil {
		m.log.Error("conversion failed", "err", r.err)
		m.sink.OnError(r.err)
	} else {
		m.lastHash = r.res.Hash
		m.sink.OnConverted(r.res)
	}

	if m.state != Listening {
		m.rerun = false
		return
	}
	if m.rerun {
		m.rerun = false
		m.arm(0)
	}
}

// publish copies loop-owned fields into the status snapshot.
func (m *Monitor) publish() {
	m.statusMu.Lock()
	m.status.State = m.state
	m.status.Pending = m.pending != ""
	m.status.InFlight = m.inFlight
	m.statusMu.Unlock()
}
