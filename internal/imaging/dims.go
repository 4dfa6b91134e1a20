package imaging

import (
	"bytes"
	"encoding/binary"
)

// PNGSignature is the 8-byte magic every PNG stream starts with.
var PNGSignature = []byte("\x89PNG\r\n\x1a\n")

// Dimensions reads width and height from the IHDR chunk of a PNG stream
// without decoding it. Anything that is not a PNG with a leading IHDR chunk
// yields (0, 0).
//
// Layout: signature[0:8] length[8:12] "IHDR"[12:16] width[16:20] height[20:24].
func Dimensions(b []byte) (w, h int) {
	if len(b) < 24 || !bytes.Equal(b[:8], PNGSignature) || string(b[12:16]) != "IHDR" {
		return 0, 0
	}
	return int(binary.BigEndian.Uint32(b[16:20])), int(binary.BigEndian.Uint32(b[20:24]))
}
