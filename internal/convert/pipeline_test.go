package convert

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/svglive/internal/imaging"
	"go.klb.dev/svglive/internal/render"
)

// stubRenderer paints a solid (or noisy) PNG of exactly the requested size.
type stubRenderer struct {
	percent bool
	fill    color.NRGBA
	noise   bool
	err     error
	gate    chan struct{}

	mu     sync.Mutex
	calls  []render.Options
	markup []string
}

func (s *stubRenderer) Name() string { return "stub" }

func (s *stubRenderer) Features() render.Features {
	return render.Features{PercentLengths: s.percent}
}

func (s *stubRenderer) Render(ctx context.Context, svgText string, opts render.Options) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, opts)
	s.markup = append(s.markup, svgText)
	s.mu.Unlock()

	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	img := image.NewNRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	rng := rand.New(rand.NewPCG(1, 2))
	for y := range opts.Height {
		for x := range opts.Width {
			c := s.fill
			if s.noise {
				c = color.NRGBA{uint8(rng.UintN(256)), uint8(rng.UintN(256)), uint8(rng.UintN(256)), 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return imaging.Encode(img)
}

func (s *stubRenderer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

const redRect = `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10">` +
	`<rect width="10" height="10" fill="#ff0000"/></svg>`

func settings96() Settings {
	s := DefaultSettings()
	s.DPI = 96
	return s
}

func newPipeline(t *testing.T, r render.Renderer, s Settings) *Pipeline {
	t.Helper()
	p, err := New(r, s, nil)
	require.NoError(t, err)
	return p
}

func TestConvertEndToEnd(t *testing.T) {
	r := &stubRenderer{percent: true, fill: color.NRGBA{255, 0, 0, 255}}
	p := newPipeline(t, r, settings96())

	res, err := p.Convert(context.Background(), redRect)
	require.NoError(t, err)

	assert.Equal(t, imaging.PNGSignature, res.PNG[:8])
	assert.Equal(t, 10, res.Width)
	assert.Equal(t, 10, res.Height)
	assert.Positive(t, res.Duration)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, res.Hash, 64)

	require.Len(t, r.markup, 1)
	assert.Contains(t, r.markup[0], `<rect x="0" y="0" width="100%" height="100%" fill="#FFFFFF"/>`)
}

func TestConvertCacheHit(t *testing.T) {
	r := &stubRenderer{percent: true}
	p := newPipeline(t, r, settings96())

	first, err := p.Convert(context.Background(), redRect)
	require.NoError(t, err)
	second, err := p.Convert(context.Background(), redRect)
	require.NoError(t, err)

	assert.Equal(t, 1, r.count())
	assert.Zero(t, second.Duration)
	assert.True(t, second.Cached())
	assert.Zero(t, second.Attempts)
	assert.Equal(t, first.Width, second.Width)
	assert.Equal(t, first.Height, second.Height)
	assert.Equal(t, first.PNG, second.PNG)
}

func TestConvertSettingsChangeMissesCache(t *testing.T) {
	r := &stubRenderer{percent: true}
	p := newPipeline(t, r, settings96())

	_, err := p.Convert(context.Background(), redRect)
	require.NoError(t, err)

	s := settings96()
	s.DPI = 192
	require.NoError(t, p.Configure(s))
	res, err := p.Convert(context.Background(), redRect)
	require.NoError(t, err)
	assert.Equal(t, 2, r.count())
	assert.Equal(t, 20, res.Width)

	s.Background = imaging.RGB{R: 1, G: 2, B: 3}
	require.NoError(t, p.Configure(s))
	_, err = p.Convert(context.Background(), redRect)
	require.NoError(t, err)
	assert.Equal(t, 3, r.count())
}

func TestConfigureRebuildsCache(t *testing.T) {
	r := &stubRenderer{percent: true}
	s := settings96()
	p := newPipeline(t, r, s)

	_, err := p.Convert(context.Background(), redRect)
	require.NoError(t, err)

	// Same capacity keeps the cache.
	s.Debounce = time.Second
	require.NoError(t, p.Configure(s))
	_, err = p.Convert(context.Background(), redRect)
	require.NoError(t, err)
	assert.Equal(t, 1, r.count())

	// New capacity discards it.
	s.CacheSize = 4
	require.NoError(t, p.Configure(s))
	_, err = p.Convert(context.Background(), redRect)
	require.NoError(t, err)
	assert.Equal(t, 2, r.count())

	s.CacheEnabled = false
	require.NoError(t, p.Configure(s))
	for range 2 {
		res, err := p.Convert(context.Background(), redRect)
		require.NoError(t, err)
		assert.Positive(t, res.Duration)
	}
	assert.Equal(t, 4, r.count())
}

func TestConvertCompositesWithoutPercentSupport(t *testing.T) {
	r := &stubRenderer{percent: false} // transparent output
	s := settings96()
	s.Background = imaging.RGB{R: 0, G: 0, B: 255}
	p := newPipeline(t, r, s)

	res, err := p.Convert(context.Background(), redRect)
	require.NoError(t, err)
	assert.Equal(t, redRect, r.markup[0])

	img, err := png.Decode(bytes.NewReader(res.PNG))
	require.NoError(t, err)
	cr, cg, cb, ca := img.At(5, 5).RGBA()
	assert.Equal(t, []uint32{0, 0, 0xffff, 0xffff}, []uint32{cr, cg, cb, ca})
}

func TestConvertTrimBorder(t *testing.T) {
	r := &stubRenderer{percent: true, fill: color.NRGBA{255, 255, 255, 255}}
	s := settings96()
	s.TrimBorder = true
	p := newPipeline(t, r, s)

	// All background: trim is a no-op and dimensions stay at target.
	res, err := p.Convert(context.Background(), redRect)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Width)
	assert.Equal(t, 10, res.Height)
}

func TestFitLoopShrinksToBudget(t *testing.T) {
	r := &stubRenderer{percent: true, noise: true}
	s := settings96()
	s.MaxBytes = 4000
	s.CacheEnabled = false
	p := newPipeline(t, r, s)

	big := `<svg width="100" height="100"></svg>`
	res, err := p.Convert(context.Background(), big)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.PNG), s.MaxBytes)
	assert.Less(t, res.Width, 100)
	assert.GreaterOrEqual(t, res.Width, 1)
	assert.GreaterOrEqual(t, res.Height, 1)
	assert.LessOrEqual(t, res.Attempts, maxFitAttempts)
	assert.Equal(t, res.Attempts, r.count())

	w, h := imaging.Dimensions(res.PNG)
	assert.Equal(t, w, res.Width)
	assert.Equal(t, h, res.Height)
}

func TestFitLoopBounded(t *testing.T) {
	for _, budget := range []int{1, 10, 60, 200, 1000} {
		r := &stubRenderer{percent: true, noise: true}
		s := settings96()
		s.MaxBytes = budget
		s.CacheEnabled = false
		p := newPipeline(t, r, s)

		res, err := p.Convert(context.Background(), `<svg width="300" height="200"></svg>`)
		assert.LessOrEqual(t, r.count(), maxFitAttempts, "budget %d", budget)
		for _, o := range r.calls {
			assert.GreaterOrEqual(t, o.Width, 1)
			assert.GreaterOrEqual(t, o.Height, 1)
		}
		if err != nil {
			var sle *SizeLimitError
			require.ErrorAs(t, err, &sle, "budget %d", budget)
			assert.Equal(t, budget, sle.Budget)
			assert.Greater(t, sle.Got, budget)
			continue
		}
		assert.LessOrEqual(t, len(res.PNG), budget)
		assert.GreaterOrEqual(t, res.Width, 1)
		assert.GreaterOrEqual(t, res.Height, 1)
	}
}

func TestFitScale(t *testing.T) {
	assert.InDelta(t, 0.95, fitScale(1000, 1001), 1e-9)
	assert.InDelta(t, 0.10, fitScale(1, 1_000_000), 1e-9)
	assert.InDelta(t, 0.45, fitScale(25, 100), 1e-9)
}

func TestConvertErrors(t *testing.T) {
	t.Run("renderer error", func(t *testing.T) {
		boom := &render.TimeoutError{Timeout: time.Second}
		p := newPipeline(t, &stubRenderer{err: boom}, settings96())
		_, err := p.Convert(context.Background(), redRect)
		var te *render.TimeoutError
		assert.ErrorAs(t, err, &te)
	})
	t.Run("missing renderer", func(t *testing.T) {
		p := newPipeline(t, render.Missing{}, settings96())
		_, err := p.Convert(context.Background(), redRect)
		assert.ErrorIs(t, err, render.ErrRendererMissing)

		p.SetRenderer(&stubRenderer{percent: true})
		_, err = p.Convert(context.Background(), redRect)
		assert.NoError(t, err)
	})
	t.Run("nil renderer", func(t *testing.T) {
		p := newPipeline(t, nil, settings96())
		_, err := p.Convert(context.Background(), redRect)
		assert.True(t, errors.Is(err, render.ErrRendererMissing))
	})
}

func TestConvertUsesSnapshot(t *testing.T) {
	r := &stubRenderer{percent: true, gate: make(chan struct{})}
	p := newPipeline(t, r, settings96())

	done := make(chan Result, 1)
	go func() {
		res, err := p.Convert(context.Background(), redRect)
		assert.NoError(t, err)
		done <- res
	}()

	require.Eventually(t, func() bool { return r.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	s := settings96()
	s.DPI = 960
	require.NoError(t, p.Configure(s))
	close(r.gate)

	res := <-done
	assert.Equal(t, 10, res.Width)
	assert.Equal(t, 960, p.Settings().DPI)
}

func TestConvertWith(t *testing.T) {
	r := &stubRenderer{percent: true}
	p := newPipeline(t, r, settings96())

	s := settings96()
	s.DPI = 48
	res, err := p.ConvertWith(context.Background(), s, redRect)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Width)
	assert.Equal(t, 96, p.Settings().DPI)

	s.DPI = 0
	_, err = p.ConvertWith(context.Background(), s, redRect)
	assert.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.TrimTolerance = 400
	v, err := s.Validate()
	require.NoError(t, err)
	assert.Equal(t, 255, v.TrimTolerance)

	s.TrimTolerance = -3
	v, err = s.Validate()
	require.NoError(t, err)
	assert.Equal(t, 0, v.TrimTolerance)

	s.DPI = 0
	_, err = s.Validate()
	assert.Error(t, err)

	s = DefaultSettings()
	s.CacheSize = 0
	_, err = s.Validate()
	assert.Error(t, err)
	s.CacheEnabled = false
	_, err = s.Validate()
	assert.NoError(t, err)
}
