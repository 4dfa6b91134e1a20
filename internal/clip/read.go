//go:build darwin || linux || windows

package clip

import "golang.design/x/clipboard"

// readDesign reads text and image formats through golang.design/x/clipboard.
func readDesign() []Item {
	var items []Item
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		items = append(items, Item{MIME: MIMEText, Data: text})
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		items = append(items, Item{MIME: MIMEPNG, Data: img})
	}
	return items
}
