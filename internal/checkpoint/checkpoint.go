// Package checkpoint persists the last-committed transaction id to a fixed
// file path via the write-temp-then-rename protocol, so a crash never
// leaves a torn checkpoint on disk.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/amvasilyev/cdc-pump/internal/tid"
	"github.com/sirupsen/logrus"
)

// Store reads and writes a single TID at Path.
type Store struct {
	Path string
}

// New returns a Store rooted at path.
func New(path string) *Store {
	return &Store{Path: path}
}

// Load reads the checkpoint file. A missing file is not an error: it
// returns the zero TID and ok=false, meaning "no checkpoint". An empty file
// is treated the same way. Any other read failure is returned as an error
// and is fatal to startup.
func (s *Store) Load() (t tid.TID, ok bool, err error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return tid.TID{}, false, nil
	}
	if err != nil {
		return tid.TID{}, false, fmt.Errorf("reading checkpoint %q: %w", s.Path, err)
	}

	token := strings.Fields(string(data))
	if len(token) == 0 {
		return tid.TID{}, false, nil
	}

	parsed, err := tid.Parse(token[0])
	if err != nil {
		return tid.TID{}, false, fmt.Errorf("checkpoint %q: %w", s.Path, err)
	}
	return parsed, true, nil
}

// Save writes t to the checkpoint file. The write goes to a sibling ".tmp"
// file first and is flushed, then renamed into place; the rename is the
// atomic commit point. Save is called once per successful commit; since
// mode switches also commit, one transaction can be saved more than once.
func (s *Store) Save(t tid.TID) error {
	tmp := s.Path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating checkpoint temp file %q: %w", tmp, err)
	}

	if _, err := f.WriteString(t.String() + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("writing checkpoint temp file %q: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("flushing checkpoint temp file %q: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing checkpoint temp file %q: %w", tmp, err)
	}

	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("renaming checkpoint into place %q: %w", s.Path, err)
	}

	logrus.WithField("tid", t.String()).Debug("checkpoint advanced")
	return nil
}

// DefaultPath is the process-relative location used when no path is
// configured, matching the upstream driver's historical default.
func DefaultPath() string {
	return filepath.Join(".", "current_gtid.txt")
}
