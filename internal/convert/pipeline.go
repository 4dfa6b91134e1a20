// Package convert turns normalized SVG text into a PNG sized by DPI, clamped
// to a maximum dimension and fitted to a byte budget, with results memoized
// by content and settings.
package convert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/svglive/internal/imaging"
	"go.klb.dev/svglive/internal/memo"
	"go.klb.dev/svglive/internal/render"
	"go.klb.dev/svglive/internal/svg"
)

// Result is a finished conversion. Duration is zero only for cache hits;
// Width and Height are read back from the PNG header.
type Result struct {
	Hash     string
	PNG      []byte
	Duration time.Duration
	Width    int
	Height   int
	DPI      int
	Attempts int // fit attempts, 0 on a cache hit
}

// Cached reports whether r was served from the cache.
func (r Result) Cached() bool { return r.Duration == 0 }

// Pipeline holds the current settings, renderer and cache. Convert takes a
// snapshot of all three under the lock and runs without it.
type Pipeline struct {
	log *slog.Logger

	mu       sync.Mutex
	settings Settings
	renderer render.Renderer
	cache    *memo.Cache // nil when caching is disabled
}

// New returns a pipeline rendering with r under settings s.
func New(r render.Renderer, s Settings, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{log: log.With("component", "convert"), renderer: r}
	if err := p.Configure(s); err != nil {
		return nil, err
	}
	return p, nil
}

// Configure installs a new settings snapshot. The cache is discarded and
// rebuilt only when enabling, disabling or resizing it.
func (p *Pipeline) Configure(s Settings) error {
	s, err := s.Validate()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case !s.CacheEnabled:
		p.cache = nil
	case p.cache == nil || p.cache.Capacity() != s.CacheSize:
		c, err := memo.New(s.CacheSize)
		if err != nil {
			return err
		}
		p.cache = c
		p.log.Debug("cache rebuilt", "capacity", s.CacheSize)
	}
	p.settings = s
	return nil
}

// SetRenderer swaps the renderer used by subsequent conversions.
func (p *Pipeline) SetRenderer(r render.Renderer) {
	p.mu.Lock()
	p.renderer = r
	p.mu.Unlock()
}

func (p *Pipeline) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

func (p *Pipeline) Renderer() render.Renderer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderer
}

// Convert converts svgText under the current settings.
func (p *Pipeline) Convert(ctx context.Context, svgText string) (Result, error) {
	p.mu.Lock()
	s, r, cache := p.settings, p.renderer, p.cache
	p.mu.Unlock()
	return p.convert(ctx, s, r, cache, svgText)
}

// ConvertWith converts svgText under s instead of the current settings. The
// cache is consulted only when both s and the pipeline have it enabled.
func (p *Pipeline) ConvertWith(ctx context.Context, s Settings, svgText string) (Result, error) {
	s, err := s.Validate()
	if err != nil {
		return Result{}, err
	}
	p.mu.Lock()
	r, cache := p.renderer, p.cache
	p.mu.Unlock()
	if !s.CacheEnabled {
		cache = nil
	}
	return p.convert(ctx, s, r, cache, svgText)
}

func (p *Pipeline) convert(ctx context.Context, s Settings, r render.Renderer, cache *memo.Cache, svgText string) (Result, error) {
	if r == nil {
		return Result{}, render.ErrRendererMissing
	}
	hash := memo.Hash(svgText)
	bg := s.Background.Hex()

	// Size comes from the markup as pasted, before any injection.
	w, h := svg.ResolveSize(svgText, s.DPI, s.MaxDimension)

	j := job{renderer: r, settings: s, markup: svgText, composite: true}
	if r.Features().PercentLengths {
		if injected, ok := svg.InjectBackground(svgText, bg); ok {
			j.markup, j.composite = injected, false
		}
	}

	key := memo.Key{
		Content: hash,
		Settings: memo.SettingsHash(s.DPI, bg, w, h, s.MaxBytes,
			s.TrimBorder, s.TrimTolerance, r.Name()),
	}
	if cache != nil {
		if e, ok := cache.Get(key); ok {
			p.log.Debug("cache hit", "hash", short(hash), "width", e.Width, "height", e.Height)
			return Result{Hash: hash, PNG: e.PNG, Width: e.Width, Height: e.Height, DPI: s.DPI}, nil
		}
	}

	start := time.Now()
	out, err := fit(ctx, j, w, h)
	if err != nil {
		return Result{}, err
	}
	elapsed := max(time.Since(start), time.Nanosecond)

	fw, fh := imaging.Dimensions(out.png)
	if fw == 0 || fh == 0 {
		return Result{}, &render.RenderError{Renderer: r.Name(), Reason: "output is not a png"}
	}
	if cache != nil {
		cache.Put(key, memo.Entry{PNG: out.png, Width: fw, Height: fh})
	}

	p.log.Info("converted",
		"hash", short(hash),
		"elapsed", elapsed,
		"width", fw, "height", fh,
		"bytes", len(out.png),
		"attempts", out.attempts,
		"dpi", s.DPI,
		"background", bg,
		"renderer", r.Name())
	return Result{
		Hash:     hash,
		PNG:      out.png,
		Duration: elapsed,
		Width:    fw,
		Height:   fh,
		DPI:      s.DPI,
		Attempts: out.attempts,
	}, nil
}

func short(hash string) string {
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}
