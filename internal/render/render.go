// Package render turns SVG markup into PNG bytes.
//
// The production renderer is Process, a wrapper around the external resvg
// executable. Builtin rasterizes in-process with oksvg for hosts without
// resvg, and Missing stands in when no renderer could be located so every
// conversion fails with ErrRendererMissing until the path is resolved again.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Options controls a single render.
type Options struct {
	Width   int
	Height  int
	DPI     int
	Timeout time.Duration // 0 = no limit
}

// Features describes what markup a renderer handles.
type Features struct {
	// PercentLengths is true when percentage geometry (width="100%") is
	// resolved against the viewport. Renderers without it get their
	// background composited onto the raster instead of injected into markup.
	PercentLengths bool
}

// Renderer rasterizes SVG text to a PNG.
type Renderer interface {
	Name() string
	Features() Features
	Render(ctx context.Context, svgText string, opts Options) ([]byte, error)
}

// ErrRendererMissing is returned by every render when no rasterizer could be
// located.
var ErrRendererMissing = errors.New("svg renderer is missing")

// TimeoutError reports a render that exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("svg render timed out after %s; raise --timeout", e.Timeout)
}

// RenderError reports a rasterizer run that exited non-zero or produced no
// usable output.
type RenderError struct {
	Renderer string
	Code     int
	Reason   string
	Output   string // captured stderr, else stdout
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("%s failed (code=%d)", e.Renderer, e.Code)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}
