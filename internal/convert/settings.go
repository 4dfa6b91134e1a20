package convert

import (
	"fmt"
	"time"

	"go.klb.dev/svglive/internal/imaging"
)

// Settings is an immutable snapshot of everything that shapes a conversion.
// It is copied by value into every call; later changes never affect a
// conversion already under way.
type Settings struct {
	DPI        int
	Background imaging.RGB
	Debounce   time.Duration
	Timeout    time.Duration

	MaxSVGChars  int // 0 = unlimited
	MaxDimension int // 0 = unbounded
	MaxBytes     int // 0 = no budget

	TrimBorder    bool
	TrimTolerance int // 0-255

	CacheEnabled bool
	CacheSize    int
}

// DefaultSettings returns the defaults of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		DPI:           300,
		Background:    imaging.White,
		Debounce:      200 * time.Millisecond,
		Timeout:       30 * time.Second,
		MaxSVGChars:   200_000_000,
		MaxDimension:  16384,
		TrimTolerance: 8,
		CacheEnabled:  true,
		CacheSize:     128,
	}
}

// Validate returns s with TrimTolerance clamped to 0-255, or an error for
// values no conversion can use.
func (s Settings) Validate() (Settings, error) {
	if s.DPI < 1 {
		return s, fmt.Errorf("dpi must be >= 1, got %d", s.DPI)
	}
	if s.CacheEnabled && s.CacheSize < 1 {
		return s, fmt.Errorf("cache-size must be >= 1, got %d", s.CacheSize)
	}
	if s.MaxDimension < 0 || s.MaxBytes < 0 || s.MaxSVGChars < 0 {
		return s, fmt.Errorf("limits must not be negative")
	}
	if s.Debounce < 0 || s.Timeout < 0 {
		return s, fmt.Errorf("durations must not be negative")
	}
	s.TrimTolerance = min(max(s.TrimTolerance, 0), 255)
	return s, nil
}
