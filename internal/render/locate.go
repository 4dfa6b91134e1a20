package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// EnvResvgPath overrides the rasterizer location.
const EnvResvgPath = "SVGLIVE_RESVG_PATH"

func exeName() string {
	if runtime.GOOS == "windows" {
		return "resvg.exe"
	}
	return "resvg"
}

// Locate finds the rasterizer executable. Search order:
//
//  1. explicit (must exist when non-empty)
//  2. $SVGLIVE_RESVG_PATH (must exist when set)
//  3. resvg on $PATH
//  4. resvg next to the running binary, then vendor/resvg/<GOOS>/ beneath it
func Locate(explicit string) (string, error) {
	if explicit != "" {
		return existing(explicit, "--resvg-path")
	}
	if env := os.Getenv(EnvResvgPath); env != "" {
		return existing(env, EnvResvgPath)
	}
	if p, err := exec.LookPath(exeName()); err == nil {
		return p, nil
	}
	if self, err := os.Executable(); err == nil {
		base := filepath.Dir(self)
		for _, cand := range []string{
			filepath.Join(base, exeName()),
			filepath.Join(base, "vendor", "resvg", runtime.GOOS, exeName()),
		} {
			if fi, err := os.Stat(cand); err == nil && !fi.IsDir() {
				return cand, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s not found on PATH; install resvg, set %s or pass --resvg-path",
		ErrRendererMissing, exeName(), EnvResvgPath)
}

func existing(path, source string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s points to %s: %w", ErrRendererMissing, source, path, err)
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%w: %s points to directory %s", ErrRendererMissing, source, path)
	}
	return path, nil
}

// Missing is the renderer installed when Locate fails. Every render returns
// its Reason, which wraps ErrRendererMissing.
type Missing struct {
	Reason error
}

func (m Missing) Name() string       { return "missing" }
func (m Missing) Features() Features { return Features{PercentLengths: true} }

func (m Missing) Render(context.Context, string, Options) ([]byte, error) {
	if m.Reason == nil {
		return nil, ErrRendererMissing
	}
	return nil, m.Reason
}
