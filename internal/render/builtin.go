package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Builtin rasterizes with oksvg in-process. It covers the common subset of
// SVG (paths, basic shapes, gradients) and ignores what it cannot parse.
type Builtin struct{}

func (Builtin) Name() string { return "builtin" }

// oksvg cannot resolve percentage lengths.
func (Builtin) Features() Features { return Features{PercentLengths: false} }

func (b Builtin) Render(ctx context.Context, svgText string, opts Options) ([]byte, error) {
	if opts.Width < 1 || opts.Height < 1 {
		return nil, fmt.Errorf("builtin: invalid size %dx%d", opts.Width, opts.Height)
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	type result struct {
		data []byte
		err  error
	}
	// oksvg has no cancellation hook; a render that overruns is abandoned.
	done := make(chan result, 1)
	go func() {
		data, err := b.rasterize(svgText, opts.Width, opts.Height)
		done <- result{data, err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		if opts.Timeout > 0 && ctx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Timeout: opts.Timeout}
		}
		return nil, ctx.Err()
	}
}

func (Builtin) rasterize(svgText string, w, h int) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(svgText), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, &RenderError{Renderer: "builtin", Code: 1, Reason: "parse svg", Output: err.Error()}
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
