package clip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
)

// BITMAPV5HEADER constants.
const (
	dibV5HeaderSize = 124
	biBitfields     = 3
	lcsSRGB         = 0x73524742 // 'sRGB'
	lcsGMImages     = 4
)

// dibFits reports whether a w×h 32-bit pixel buffer stays within limit.
func dibFits(w, h, limit int) bool {
	if limit < 0 || w < 1 || h < 1 {
		return false
	}
	return int64(w)*int64(h)*4 <= int64(limit)
}

// pelsPerMeter converts dots per inch to the DIB resolution unit.
func pelsPerMeter(dpi int) int32 {
	return int32(math.Round(float64(dpi) / 0.0254))
}

// EncodeDIBV5 decodes pngData and returns a BITMAPV5HEADER followed by
// top-down, straight-alpha BGRA pixels, the CF_DIBV5 clipboard layout.
func EncodeDIBV5(pngData []byte, dpi int) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)

	pixels := w * h * 4
	out := make([]byte, dibV5HeaderSize+pixels)
	hdr := out[:dibV5HeaderSize]
	le := binary.LittleEndian
	ppm := uint32(pelsPerMeter(dpi))

	le.PutUint32(hdr[0:], dibV5HeaderSize)
	le.PutUint32(hdr[4:], uint32(int32(w)))
	le.PutUint32(hdr[8:], uint32(-int32(h))) // negative: top-down rows
	le.PutUint16(hdr[12:], 1)                // planes
	le.PutUint16(hdr[14:], 32)               // bit count
	le.PutUint32(hdr[16:], biBitfields)
	le.PutUint32(hdr[20:], uint32(pixels))
	le.PutUint32(hdr[24:], ppm)
	le.PutUint32(hdr[28:], ppm)
	// 32, 36: ClrUsed, ClrImportant
	le.PutUint32(hdr[40:], 0x00FF0000)
	le.PutUint32(hdr[44:], 0x0000FF00)
	le.PutUint32(hdr[48:], 0x000000FF)
	le.PutUint32(hdr[52:], 0xFF000000)
	le.PutUint32(hdr[56:], lcsSRGB)
	// 60-95: endpoints, 96-107: gamma
	le.PutUint32(hdr[108:], lcsGMImages)
	// 112-123: profile data, profile size, reserved

	px := out[dibV5HeaderSize:]
	for y := range h {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		dst := px[y*w*4:]
		for x := 0; x < w*4; x += 4 {
			dst[x+0] = row[x+2]
			dst[x+1] = row[x+1]
			dst[x+2] = row[x+0]
			dst[x+3] = row[x+3]
		}
	}
	return out, nil
}
