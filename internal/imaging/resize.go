package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Resize scales the PNG in b to exactly w×h. Input already at that size is
// returned unchanged.
func Resize(b []byte, w, h int) ([]byte, error) {
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("resize: invalid size %dx%d", w, h)
	}
	if cw, ch := Dimensions(b); cw == w && ch == h {
		return b, nil
	}
	src, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return Encode(dst)
}
