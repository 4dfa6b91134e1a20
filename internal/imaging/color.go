// Package imaging post-processes rasterized PNGs: dimension sniffing,
// background compositing and border trimming.
package imaging

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// RGB is an opaque 24-bit colour.
type RGB struct {
	R, G, B uint8
}

// White is the default background.
var White = RGB{0xFF, 0xFF, 0xFF}

// ParseHex parses "#RRGGBB" (the leading '#' is optional).
func ParseHex(s string) (RGB, error) {
	v := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(v) != 6 {
		return RGB{}, fmt.Errorf("colour %q: want #RRGGBB", s)
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return RGB{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// Hex formats c as "#RRGGBB".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func (c RGB) String() string { return c.Hex() }

// NRGBA returns c as a fully opaque color.NRGBA.
func (c RGB) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xFF}
}
