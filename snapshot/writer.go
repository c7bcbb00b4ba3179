package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
)

const fileName = "snapshot.bin"

// ErrStale is returned when a snapshot older than the one on disk is written.
var ErrStale = errors.New("snapshot: older than the current snapshot")

// Writer owns the snapshot file of one data directory. Writes are serialized
// and the file's sequence never moves backwards.
type Writer struct {
	Dir string

	mu     sync.Mutex
	loaded bool
	last   uint64
}

func (w *Writer) Path() string {
	return filepath.Join(w.Dir, fileName)
}

// LastSeq returns the sequence of the newest snapshot on disk.
func (w *Writer) LastSeq() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.loadLast(); err != nil {
		return 0, err
	}
	return w.last, nil
}

func (w *Writer) loadLast() error {
	if w.loaded {
		return nil
	}
	cur, err := Load(w.Path())
	if err != nil {
		return err
	}
	if cur != nil {
		w.last = cur.Seq
	}
	w.loaded = true
	return nil
}

// Write replaces the snapshot file atomically: a crash mid-write leaves the
// previous snapshot in place. A snapshot older than the current one is
// rejected with ErrStale; one at the same sequence is a no-op.
func (w *Writer) Write(s Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.loadLast(); err != nil {
		return err
	}
	switch {
	case s.Seq < w.last:
		return errors.Wrapf(ErrStale, "seq %d, on disk %d", s.Seq, w.last)
	case s.Seq == w.last && w.last != 0:
		return nil
	}

	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.Dir, fileName+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(&s); err != nil {
		tmp.Close()
		return errors.Wrap(err, "snapshot: encode")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), w.Path()); err != nil {
		return err
	}
	w.last = s.Seq
	return nil
}
