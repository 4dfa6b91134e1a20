package clip

import (
	"context"
	"log/slog"
)

const previewChars = 120

// LogItems logs a clipboard change at DEBUG: the MIME types, then a text
// preview up to 120 chars or the byte size of binary items.
func LogItems(log *slog.Logger, event string, items []Item) {
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	mimes := make([]string, len(items))
	for i, it := range items {
		mimes[i] = it.MIME
	}
	log.Debug(event, "types", mimes)

	for _, it := range items {
		if it.MIME == MIMEText {
			preview := string(it.Data)
			if len(preview) > previewChars {
				preview = preview[:previewChars] + "…"
			}
			log.Debug("clipboard item", "mime", it.MIME, "preview", preview)
		} else {
			log.Debug("clipboard item", "mime", it.MIME, "size_bytes", len(it.Data))
		}
	}
}
