package svg

import (
	"fmt"
	"strconv"
	"strings"
)

// InjectBackground inserts a solid rectangle of colour hex (#RRGGBB) as the
// first child of the root <svg> element. The rectangle starts at the
// viewBox origin and is sized 100%x100%, so it covers the viewport even when
// the viewBox is offset.
//
// It reports false, returning svgText unchanged, when no root tag is found.
func InjectBackground(svgText, hex string) (string, bool) {
	loc := rootTagRE.FindStringIndex(svgText)
	if loc == nil {
		return svgText, false
	}
	tag := svgText[loc[0]:loc[1]]

	x, y := 0.0, 0.0
	if vb, ok := attr(tag, "viewBox"); ok {
		if vx, vy, _, _, ok := viewBox(vb); ok {
			x, y = vx, vy
		}
	}
	rect := fmt.Sprintf(`<rect x="%s" y="%s" width="100%%" height="100%%" fill="%s"/>`,
		formatNum(x), formatNum(y), hex)

	var b strings.Builder
	b.Grow(len(svgText) + len(rect) + len("</svg>"))
	if inner := strings.TrimRight(tag[:len(tag)-1], " \t\r\n"); strings.HasSuffix(inner, "/") {
		// <svg .../> has no children to precede; open it up.
		b.WriteString(svgText[:loc[0]])
		b.WriteString(inner[:len(inner)-1])
		b.WriteString(">")
		b.WriteString(rect)
		b.WriteString("</svg>")
		b.WriteString(svgText[loc[1]:])
		return b.String(), true
	}
	b.WriteString(svgText[:loc[1]])
	b.WriteString(rect)
	b.WriteString(svgText[loc[1]:])
	return b.String(), true
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
