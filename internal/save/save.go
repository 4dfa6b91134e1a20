// Package save writes converted PNGs to disk in the background.
package save

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoDir is reported when saving is enabled without a directory.
var ErrNoDir = errors.New("save directory is not set")

// Filename returns "YYYYMMDD_HHMMSS_<hash[:10]>.png" for now in local time.
func Filename(hash string, now time.Time) string {
	if hash == "" {
		hash = "unknown"
	}
	if len(hash) > 10 {
		hash = hash[:10]
	}
	return now.Format("20060102_150405") + "_" + hash + ".png"
}

// WriteAtomic writes data to path through a temp file in the same directory
// and renames it into place, creating the directory if needed. Readers see
// either the previous file or the complete new one.
func WriteAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp."+uuid.NewString())
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

// Config is the saver's settings snapshot.
type Config struct {
	Enabled bool
	Dir     string
}

// Reporter is told how each save ended. Calls come from the save goroutine.
type Reporter interface {
	OnSaved(path string)
	OnSaveError(err error)
}

// Saver writes PNGs asynchronously. A failing save is reported and never
// blocks the caller.
type Saver struct {
	log *slog.Logger
	rep Reporter
	now func() time.Time

	mu  sync.Mutex
	cfg Config
	wg  sync.WaitGroup
}

func New(cfg Config, rep Reporter, log *slog.Logger) *Saver {
	if log == nil {
		log = slog.Default()
	}
	return &Saver{log: log.With("component", "save"), rep: rep, now: time.Now, cfg: cfg}
}

func (s *Saver) Configure(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Save queues png for writing under the configured directory and returns
// immediately. It is a no-op when saving is disabled.
func (s *Saver) Save(png []byte, hash string) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	if !cfg.Enabled {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if cfg.Dir == "" {
			s.fail(ErrNoDir)
			return
		}
		path := filepath.Join(ExpandHome(cfg.Dir), Filename(hash, s.now()))
		if err := WriteAtomic(path, png); err != nil {
			s.fail(err)
			return
		}
		s.log.Info("png saved", "path", path, "bytes", len(png))
		if s.rep != nil {
			s.rep.OnSaved(path)
		}
	}()
}

func (s *Saver) fail(err error) {
	s.log.Error("png save failed", "err", err)
	if s.rep != nil {
		s.rep.OnSaveError(err)
	}
}

// Wait blocks until every queued save has finished.
func (s *Saver) Wait() { s.wg.Wait() }
