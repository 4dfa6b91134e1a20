package convert

import (
	"context"
	"fmt"
	"math"

	"go.klb.dev/svglive/internal/imaging"
	"go.klb.dev/svglive/internal/render"
)

const (
	maxFitAttempts = 6
	fitSafety      = 0.90
	fitMinScale    = 0.10
	fitMaxScale    = 0.95
)

// SizeLimitError reports output that still exceeded the byte budget after
// every downscale attempt.
type SizeLimitError struct {
	Got    int
	Budget int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("png is %d bytes, over the %d byte limit after downscaling; raise --max-bytes or lower --dpi",
		e.Got, e.Budget)
}

type job struct {
	renderer  render.Renderer
	settings  Settings
	markup    string
	composite bool
}

type fitted struct {
	png      []byte
	attempts int
}

// fit renders at w×h and shrinks the target until the PNG fits the byte
// budget, the size stops changing or maxFitAttempts is reached.
func fit(ctx context.Context, j job, w, h int) (fitted, error) {
	s := j.settings
	var out []byte
	attempts := 0
	for attempts < maxFitAttempts {
		attempts++
		b, err := j.pass(ctx, w, h)
		if err != nil {
			return fitted{}, err
		}
		out = b
		if s.MaxBytes <= 0 || len(out) <= s.MaxBytes {
			break
		}
		scale := fitScale(s.MaxBytes, len(out))
		nw := max(1, int(math.Round(float64(w)*scale)))
		nh := max(1, int(math.Round(float64(h)*scale)))
		if nw == w && nh == h {
			break
		}
		w, h = nw, nh
	}
	if s.MaxBytes > 0 && len(out) > s.MaxBytes {
		return fitted{}, &SizeLimitError{Got: len(out), Budget: s.MaxBytes}
	}
	return fitted{png: out, attempts: attempts}, nil
}

// fitScale is the linear shrink factor for an output of got bytes against
// budget. Byte size tracks pixel area, hence the square root.
func fitScale(budget, got int) float64 {
	scale := math.Sqrt(float64(budget)/float64(got)) * fitSafety
	return min(max(scale, fitMinScale), fitMaxScale)
}

// pass is a single render → resize → background → trim attempt.
func (j job) pass(ctx context.Context, w, h int) ([]byte, error) {
	s := j.settings
	b, err := j.renderer.Render(ctx, j.markup, render.Options{
		Width:   w,
		Height:  h,
		DPI:     s.DPI,
		Timeout: s.Timeout,
	})
	if err != nil {
		return nil, err
	}
	// Rasterizers that only understand --zoom can miss the target by a pixel.
	if b, err = imaging.Resize(b, w, h); err != nil {
		return nil, fmt.Errorf("resize output: %w", err)
	}
	if j.composite {
		if b, err = imaging.CompositeBackground(b, s.Background); err != nil {
			return nil, fmt.Errorf("composite background: %w", err)
		}
	}
	if s.TrimBorder {
		if b, _, _, err = imaging.TrimBorder(b, s.Background, s.TrimTolerance); err != nil {
			return nil, fmt.Errorf("trim border: %w", err)
		}
	}
	return b, nil
}
