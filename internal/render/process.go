package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	probeTimeout = 2 * time.Second
	// waitDelay bounds how long output pipes are drained after a kill, in
	// case the rasterizer left children holding them open.
	waitDelay = 500 * time.Millisecond
)

// Capabilities records which sizing flags the rasterizer understands.
type Capabilities struct {
	Width  bool
	Height bool
	Zoom   bool
	DPI    bool
}

// Process runs an external resvg-compatible rasterizer:
//
//	resvg [--dpi N] [--width W] [--height H | --zoom Z] in.svg out.png
type Process struct {
	path string
	log  *slog.Logger

	capsOnce sync.Once
	caps     Capabilities
}

// NewProcess returns a renderer for the executable at path. The executable
// is not touched until the first render.
func NewProcess(path string, log *slog.Logger) *Process {
	if log == nil {
		log = slog.Default()
	}
	return &Process{path: path, log: log.With("renderer", filepath.Base(path))}
}

func (p *Process) Name() string { return "resvg" }

// Path returns the executable path.
func (p *Process) Path() string { return p.path }

func (p *Process) Features() Features { return Features{PercentLengths: true} }

// Capabilities probes "<exe> --help" on first call and caches the answer for
// the lifetime of p.
func (p *Process) Capabilities() Capabilities {
	p.capsOnce.Do(func() {
		p.caps = p.probe()
		p.log.Debug("rasterizer capabilities",
			"width", p.caps.Width, "height", p.caps.Height,
			"zoom", p.caps.Zoom, "dpi", p.caps.DPI)
	})
	return p.caps
}

func (p *Process) probe() Capabilities {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.path, "--help")
	configureCmd(cmd)
	out, err := cmd.CombinedOutput()
	if err != nil && len(out) == 0 {
		p.log.Warn("rasterizer probe failed", "err", err)
	}
	help := string(out)
	return Capabilities{
		Width:  strings.Contains(help, "--width"),
		Height: strings.Contains(help, "--height"),
		Zoom:   strings.Contains(help, "--zoom"),
		DPI:    strings.Contains(help, "--dpi"),
	}
}

// buildArgs assembles the rasterizer command line. Explicit width/height are
// preferred; zoom (dpi/96) stands in for the height when --height is missing.
func buildArgs(caps Capabilities, opts Options, in, out string) []string {
	var args []string
	if caps.DPI && opts.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(opts.DPI))
	}
	if caps.Width {
		args = append(args, "--width", strconv.Itoa(opts.Width))
	}
	if caps.Height {
		args = append(args, "--height", strconv.Itoa(opts.Height))
	} else if caps.Zoom && opts.DPI > 0 {
		args = append(args, "--zoom", strconv.FormatFloat(float64(opts.DPI)/96.0, 'f', 6, 64))
	}
	return append(args, in, out)
}

// Render writes svgText to a private temp directory, runs the rasterizer and
// reads back its output. The directory is removed on every path.
func (p *Process) Render(ctx context.Context, svgText string, opts Options) ([]byte, error) {
	caps := p.Capabilities()

	dir, err := os.MkdirTemp("", "svglive-")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.svg")
	out := filepath.Join(dir, "out.png")
	if err := os.WriteFile(in, []byte(svgText), 0o600); err != nil {
		return nil, fmt.Errorf("write svg: %w", err)
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, p.path, buildArgs(caps, opts, in, out)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	configureCmd(cmd)

	start := time.Now()
	runErr := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &TimeoutError{Timeout: opts.Timeout}
	}
	if runErr != nil {
		var ee *exec.ExitError
		if errors.As(runErr, &ee) {
			return nil, &RenderError{Renderer: p.Name(), Code: ee.ExitCode(), Output: captured(&stdout, &stderr)}
		}
		return nil, fmt.Errorf("run %s: %w", p.path, runErr)
	}

	data, err := os.ReadFile(out)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &RenderError{Renderer: p.Name(), Reason: "no output file", Output: captured(&stdout, &stderr)}
	case err != nil:
		return nil, fmt.Errorf("read output: %w", err)
	case len(data) == 0:
		return nil, &RenderError{Renderer: p.Name(), Reason: "empty output file", Output: captured(&stdout, &stderr)}
	}

	p.log.Debug("rasterizer finished",
		"width", opts.Width, "height", opts.Height,
		"bytes", len(data), "elapsed", time.Since(start))
	return data, nil
}

func captured(stdout, stderr *bytes.Buffer) string {
	if s := strings.TrimSpace(stderr.String()); s != "" {
		return s
	}
	return strings.TrimSpace(stdout.String())
}
