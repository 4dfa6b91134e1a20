package save

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	now := time.Date(2020, 1, 2, 3, 4, 5, 0, time.Local)
	assert.Equal(t, "20200102_030405_abcdef0123.png", Filename("abcdef0123456789", now))
	assert.Equal(t, "20200102_030405_unknown.png", Filename("", now))
	assert.Equal(t, "20200102_030405_abc.png", Filename("abc", now))
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "x.png")

	require.NoError(t, WriteAtomic(out, []byte("123")))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("123"), got)

	require.NoError(t, WriteAtomic(out, []byte("4567")))
	got, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("4567"), got)

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not linger")
}

func TestWriteAtomicFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := WriteAtomic(filepath.Join(blocker, "x.png"), []byte("1"))
	assert.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "pngs"), ExpandHome("~/pngs"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/abs/dir", ExpandHome("/abs/dir"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}

type reports struct {
	mu     sync.Mutex
	saved  []string
	failed []error
}

func (r *reports) OnSaved(p string) {
	r.mu.Lock()
	r.saved = append(r.saved, p)
	r.mu.Unlock()
}

func (r *reports) OnSaveError(err error) {
	r.mu.Lock()
	r.failed = append(r.failed, err)
	r.mu.Unlock()
}

func TestSaver(t *testing.T) {
	dir := t.TempDir()
	rep := &reports{}
	s := New(Config{Enabled: true, Dir: dir}, rep, nil)
	s.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local) }

	s.Save([]byte("png"), "0123456789abcdef")
	s.Wait()

	require.Len(t, rep.saved, 1)
	assert.Equal(t, filepath.Join(dir, "20240506_070809_0123456789.png"), rep.saved[0])
	got, err := os.ReadFile(rep.saved[0])
	require.NoError(t, err)
	assert.Equal(t, "png", string(got))

	s.Configure(Config{Enabled: false, Dir: dir})
	s.Save([]byte("png"), "ffff")
	s.Wait()
	assert.Len(t, rep.saved, 1)

	s.Configure(Config{Enabled: true})
	s.Save([]byte("png"), "ffff")
	s.Wait()
	require.Len(t, rep.failed, 1)
	assert.ErrorIs(t, rep.failed[0], ErrNoDir)
}
