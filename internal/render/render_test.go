package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/svglive/internal/imaging"
)

func TestLocateExplicit(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "resvg-custom")
	require.NoError(t, os.WriteFile(exe, []byte("x"), 0o755))

	got, err := Locate(exe)
	require.NoError(t, err)
	assert.Equal(t, exe, got)

	_, err = Locate(filepath.Join(dir, "nope"))
	assert.ErrorIs(t, err, ErrRendererMissing)

	_, err = Locate(dir)
	assert.ErrorIs(t, err, ErrRendererMissing)
}

func TestLocateEnv(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "resvg-env")
	require.NoError(t, os.WriteFile(exe, []byte("x"), 0o755))

	t.Setenv(EnvResvgPath, exe)
	got, err := Locate("")
	require.NoError(t, err)
	assert.Equal(t, exe, got)

	t.Setenv(EnvResvgPath, filepath.Join(dir, "missing"))
	_, err = Locate("")
	assert.ErrorIs(t, err, ErrRendererMissing)
}

func TestMissing(t *testing.T) {
	_, err := Missing{}.Render(context.Background(), "<svg/>", Options{})
	assert.ErrorIs(t, err, ErrRendererMissing)

	reason := errors.Join(ErrRendererMissing, errors.New("not on PATH"))
	_, err = Missing{Reason: reason}.Render(context.Background(), "<svg/>", Options{})
	assert.ErrorIs(t, err, ErrRendererMissing)
	assert.Contains(t, err.Error(), "not on PATH")
}

func TestBuiltinRender(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10" viewBox="0 0 10 10">` +
		`<rect x="0" y="0" width="10" height="10" fill="#ff0000"/></svg>`

	out, err := Builtin{}.Render(context.Background(), svg, Options{Width: 40, Height: 20, Timeout: 5 * time.Second})
	require.NoError(t, err)

	w, h := imaging.Dimensions(out)
	assert.Equal(t, 40, w)
	assert.Equal(t, 20, h)
}

func TestBuiltinInvalidSize(t *testing.T) {
	_, err := Builtin{}.Render(context.Background(), "<svg/>", Options{Width: 0, Height: 5})
	assert.Error(t, err)
}

func TestErrorMessages(t *testing.T) {
	te := &TimeoutError{Timeout: 30 * time.Second}
	assert.Equal(t, "svg render timed out after 30s; raise --timeout", te.Error())

	re := &RenderError{Renderer: "resvg", Code: 2, Output: "bad svg"}
	assert.Contains(t, re.Error(), "resvg failed (code=2)")
	assert.Contains(t, re.Error(), "bad svg")
}
