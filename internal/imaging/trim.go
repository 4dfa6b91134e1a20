package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// trimScanMax bounds the long side of the copy scanned for content.
const trimScanMax = 1024

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// TrimBorder crops away a solid border of colour bg, where a pixel matches
// when every channel is within tolerance (0-255) of bg. Fully transparent
// pixels count as border too.
//
// The content box is found on a copy downsampled to at most 1024px on the
// long side, mapped back to full resolution and grown by one cell so
// anti-aliased edges survive. The input is returned unchanged when the
// image is all border or there is nothing to crop.
func TrimBorder(b []byte, bg RGB, tolerance int) ([]byte, int, int, error) {
	src, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode png: %w", err)
	}
	full := src.Bounds()
	fw, fh := full.Dx(), full.Dy()
	tolerance = min(max(tolerance, 0), 255)

	scan := src
	cellX, cellY := 1.0, 1.0
	if long := max(fw, fh); long > trimScanMax {
		scale := float64(trimScanMax) / float64(long)
		sw := max(1, int(math.Round(float64(fw)*scale)))
		sh := max(1, int(math.Round(float64(fh)*scale)))
		small := image.NewNRGBA(image.Rect(0, 0, sw, sh))
		draw.ApproxBiLinear.Scale(small, small.Bounds(), src, full, draw.Src, nil)
		scan = small
		cellX = float64(fw) / float64(sw)
		cellY = float64(fh) / float64(sh)
	}

	box, found := contentBox(scan, bg, uint8(tolerance))
	if !found {
		return b, fw, fh, nil
	}

	var padX, padY int
	if cellX > 1 || cellY > 1 {
		padX, padY = int(math.Ceil(cellX)), int(math.Ceil(cellY))
	}
	crop := image.Rect(
		int(math.Floor(float64(box.Min.X)*cellX))-padX,
		int(math.Floor(float64(box.Min.Y)*cellY))-padY,
		int(math.Ceil(float64(box.Max.X)*cellX))+padX,
		int(math.Ceil(float64(box.Max.Y)*cellY))+padY,
	).Add(full.Min).Intersect(full)

	if crop.Eq(full) || crop.Empty() {
		return b, fw, fh, nil
	}

	var cropped image.Image
	if si, ok := src.(subImager); ok {
		cropped = si.SubImage(crop)
	} else {
		dst := image.NewNRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
		draw.Draw(dst, dst.Bounds(), src, crop.Min, draw.Src)
		cropped = dst
	}
	out, err := Encode(cropped)
	if err != nil {
		return nil, 0, 0, err
	}
	return out, crop.Dx(), crop.Dy(), nil
}

// contentBox returns the bounding box, relative to img's origin, of pixels
// that differ from bg by more than tol on some channel.
func contentBox(img image.Image, bg RGB, tol uint8) (image.Rectangle, bool) {
	r := img.Bounds()
	minX, minY := r.Max.X, r.Max.Y
	maxX, maxY := r.Min.X-1, r.Min.Y-1
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A == 0 || (near(c.R, bg.R, tol) && near(c.G, bg.G, tol) && near(c.B, bg.B, tol)) {
				continue
			}
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX-r.Min.X, minY-r.Min.Y, maxX+1-r.Min.X, maxY+1-r.Min.Y), true
}

func near(a, b, tol uint8) bool {
	if a > b {
		return a-b <= tol
	}
	return b-a <= tol
}
