package clip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/svglive/internal/imaging"
)

func TestEncodeDIBV5Header(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44})
	img.SetNRGBA(2, 1, color.NRGBA{R: 0xAA, G: 0xBB, B: 0xCC, A: 0xFF})
	png, err := imaging.Encode(img)
	require.NoError(t, err)

	out, err := EncodeDIBV5(png, 300)
	require.NoError(t, err)
	require.Len(t, out, 124+3*2*4)

	le := binary.LittleEndian
	assert.Equal(t, uint32(124), le.Uint32(out[0:]))
	assert.Equal(t, int32(3), int32(le.Uint32(out[4:])))
	assert.Equal(t, int32(-2), int32(le.Uint32(out[8:])))
	assert.Equal(t, uint16(1), le.Uint16(out[12:]))
	assert.Equal(t, uint16(32), le.Uint16(out[14:]))
	assert.Equal(t, uint32(3), le.Uint32(out[16:]))
	assert.Equal(t, uint32(24), le.Uint32(out[20:]))
	assert.Equal(t, uint32(11811), le.Uint32(out[24:]))
	assert.Equal(t, uint32(11811), le.Uint32(out[28:]))
	assert.Equal(t, uint32(0x00FF0000), le.Uint32(out[40:]))
	assert.Equal(t, uint32(0x0000FF00), le.Uint32(out[44:]))
	assert.Equal(t, uint32(0x000000FF), le.Uint32(out[48:]))
	assert.Equal(t, uint32(0xFF000000), le.Uint32(out[52:]))
	assert.Equal(t, uint32(0x73524742), le.Uint32(out[56:]))
	assert.Equal(t, uint32(4), le.Uint32(out[108:]))

	px := out[124:]
	// First row first pixel, BGRA with straight alpha.
	assert.Equal(t, []byte{0x33, 0x22, 0x11, 0x44}, px[0:4])
	// Last pixel of the second row: top-down order.
	assert.Equal(t, []byte{0xCC, 0xBB, 0xAA, 0xFF}, px[(1*3+2)*4:(1*3+2)*4+4])
}

func TestEncodeDIBV5Invalid(t *testing.T) {
	_, err := EncodeDIBV5([]byte("not a png"), 96)
	assert.Error(t, err)
}

func TestPelsPerMeter(t *testing.T) {
	assert.Equal(t, int32(3780), pelsPerMeter(96))
	assert.Equal(t, int32(11811), pelsPerMeter(300))
	assert.Equal(t, int32(0), pelsPerMeter(0))
}

func TestDIBFits(t *testing.T) {
	assert.True(t, dibFits(10, 10, 400))
	assert.False(t, dibFits(10, 10, 399))
	assert.False(t, dibFits(10, 10, -1))
	assert.False(t, dibFits(0, 10, 1<<20))
	assert.True(t, dibFits(100_000, 100_000, 1<<62))
}

func TestRetry(t *testing.T) {
	calls := 0
	err := retry(func() error {
		calls++
		if calls < 3 {
			return errors.New("locked")
		}
		return nil
	}, 10, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retry(func() error { calls++; return errors.New("locked") }, 4, time.Millisecond)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Contains(t, err.Error(), "locked")
	assert.Equal(t, 4, calls)
}

func TestItemHelpers(t *testing.T) {
	items := []Item{{MIME: MIMEPNG, Data: []byte{1}}, {MIME: MIMEText, Data: []byte("<svg/>")}}
	text, ok := Text(items)
	assert.True(t, ok)
	assert.Equal(t, "<svg/>", text)
	assert.True(t, HasImage(items))

	_, ok = Text(nil)
	assert.False(t, ok)
	assert.False(t, HasImage([]Item{{MIME: MIMEPNG}}))
}

func TestMemoryBackend(t *testing.T) {
	m := NewMemory()
	m.SetText("hello")
	<-m.Watch()

	items, err := m.Read()
	require.NoError(t, err)
	text, _ := Text(items)
	assert.Equal(t, "hello", text)

	require.NoError(t, m.WriteImage(Image{PNG: []byte{9}, Width: 1, Height: 1}))
	items, err = m.Read()
	require.NoError(t, err)
	assert.True(t, HasImage(items))
	_, ok := Text(items)
	assert.False(t, ok)
	assert.Len(t, m.Writes(), 1)

	m.SetReadError(errors.New("gone"))
	_, err = m.Read()
	assert.Error(t, err)
}

func TestOptionsDefaults(t *testing.T) {
	assert.Equal(t, DefaultDIBMaxBytes, Options{}.dibMax())
	assert.Equal(t, 5, Options{DIBMaxBytes: 5}.dibMax())
	assert.NotNil(t, Options{}.logger())
}

func TestLogItems(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	LogItems(log, "clipboard changed", []Item{
		{MIME: MIMEText, Data: []byte(strings.Repeat("x", 200))},
		{MIME: MIMEPNG, Data: make([]byte, 7)},
	})
	out := buf.String()
	assert.Contains(t, out, "clipboard changed")
	assert.Contains(t, out, strings.Repeat("x", 120)+"…")
	assert.NotContains(t, out, strings.Repeat("x", 121))
	assert.Contains(t, out, "size_bytes=7")

	buf.Reset()
	quiet := slog.New(slog.NewTextHandler(&buf, nil))
	LogItems(quiet, "clipboard changed", []Item{{MIME: MIMEText, Data: []byte("a")}})
	assert.Empty(t, buf.String())
}
