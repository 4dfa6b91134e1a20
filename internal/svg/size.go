package svg

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Logical size used when the document declares neither a usable
// width/height pair nor a viewBox (the CSS default for replaced elements).
const (
	DefaultWidth  = 300.0
	DefaultHeight = 150.0
)

// CSSPixelsPerInch is the reference resolution all SVG units resolve against.
const CSSPixelsPerInch = 96.0

var (
	rootTagRE = regexp.MustCompile(`(?is)<svg\b[^>]*>`)
	lengthRE  = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z%]*)\s*$`)
	listSepRE = regexp.MustCompile(`[,\s]+`)

	attrREs = map[string]*regexp.Regexp{
		"width":   attrRE("width"),
		"height":  attrRE("height"),
		"viewBox": attrRE("viewBox"),
	}
)

func attrRE(name string) *regexp.Regexp {
	// Anchored on whitespace so stroke-width and friends don't match.
	return regexp.MustCompile(`(?i)\s` + name + `\s*=\s*["']([^"']+)["']`)
}

// unitPx maps absolute CSS units to their size in CSS pixels.
var unitPx = map[string]float64{
	"":   1,
	"px": 1,
	"in": CSSPixelsPerInch,
	"pt": CSSPixelsPerInch / 72,
	"pc": CSSPixelsPerInch / 6,
	"mm": CSSPixelsPerInch / 25.4,
	"cm": CSSPixelsPerInch / 2.54,
}

// rootTag returns the root <svg ...> start tag, or "".
func rootTag(svgText string) string {
	return rootTagRE.FindString(svgText)
}

func attr(tag, name string) (string, bool) {
	m := attrREs[name].FindStringSubmatch(tag)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ParseLength converts an SVG length to CSS pixels. Percentages and
// font- or viewport-relative units need a layout context and are reported
// as unresolved.
func ParseLength(v string) (float64, bool) {
	m := lengthRE.FindStringSubmatch(v)
	if m == nil {
		return 0, false
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	factor, ok := unitPx[strings.ToLower(m[2])]
	if !ok {
		return 0, false
	}
	return num * factor, true
}

// viewBox returns min-x, min-y, width and height of a viewBox value.
func viewBox(v string) (x, y, w, h float64, ok bool) {
	parts := listSepRE.Split(strings.TrimSpace(v), -1)
	if len(parts) != 4 {
		return 0, 0, 0, 0, false
	}
	var nums [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		nums[i] = f
	}
	if nums[2] <= 0 || nums[3] <= 0 {
		return 0, 0, 0, 0, false
	}
	return nums[0], nums[1], nums[2], nums[3], true
}

// LogicalSize returns the size of the document in CSS pixels: width/height
// when both resolve to positive lengths, else the viewBox extent, else
// 300x150.
func LogicalSize(svgText string) (w, h float64) {
	tag := rootTag(svgText)
	if tag == "" {
		return DefaultWidth, DefaultHeight
	}

	wRaw, wok := attr(tag, "width")
	hRaw, hok := attr(tag, "height")
	if wok && hok {
		w, wres := ParseLength(wRaw)
		h, hres := ParseLength(hRaw)
		if wres && hres && w > 0 && h > 0 {
			return w, h
		}
	}

	if vb, ok := attr(tag, "viewBox"); ok {
		if _, _, vw, vh, ok := viewBox(vb); ok {
			return vw, vh
		}
	}
	return DefaultWidth, DefaultHeight
}

// ResolveSize returns the pixel dimensions to rasterize svgText at for the
// given dpi. When maxDim > 0 and the larger side exceeds it, both sides are
// scaled by maxDim/max(w, h) and rounded independently, so the aspect ratio
// may drift by up to a pixel. Halves round to even.
func ResolveSize(svgText string, dpi, maxDim int) (w, h int) {
	lw, lh := LogicalSize(svgText)
	scale := float64(dpi) / CSSPixelsPerInch
	w = max(1, int(math.RoundToEven(lw*scale)))
	h = max(1, int(math.RoundToEven(lh*scale)))

	if maxDim > 0 {
		if m := max(w, h); m > maxDim {
			ratio := float64(maxDim) / float64(m)
			w = max(1, int(math.RoundToEven(float64(w)*ratio)))
			h = max(1, int(math.RoundToEven(float64(h)*ratio)))
		}
	}
	return w, h
}
