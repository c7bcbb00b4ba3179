package entry

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

const (
	headerSize = 1 + 8 + 8 + 4
	crcSize    = 4
)

type Config struct {
	Dir         string
	SegmentSize int64
	// SyncEveryAppend fsyncs the segment after each record.
	SyncEveryAppend bool
}

type WAL struct {
	mu sync.Mutex

	dir        string
	segSize    int64
	syncAppend bool
	current    *segment
	segIndex   int
	// bytes appended since the last fsync
	unsynced int64
}

// Open starts a fresh segment after the highest existing one, so records
// written by this process always sort after everything already on disk.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 2 * 1024 * 1024
	}

	files, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if len(files) > 0 {
		last := files[len(files)-1]
		if err := repairTail(last); err != nil {
			return nil, errors.Wrapf(err, "entry: repair %s", last)
		}
		index = segmentIndex(last) + 1
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		syncAppend: cfg.SyncEveryAppend,
		current:    seg,
		segIndex:   index,
	}, nil
}

func (w *WAL) Dir() string { return w.dir }

func (w *WAL) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	frame := encodeFrame(r)
	if err := w.current.append(frame); err != nil {
		return errors.Wrapf(err, "entry: append seq %d", r.Seq)
	}
	w.unsynced += int64(len(frame))
	if w.syncAppend {
		if err := w.sync(); err != nil {
			return errors.Wrapf(err, "entry: sync seq %d", r.Seq)
		}
	}

	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

func encodeFrame(r *Record) []byte {
	payloadLen := uint32(len(r.Data))

	// Frame:
	// [type:1][seq:8][time:8][len:4][payload][crc:4]
	buf := make([]byte, headerSize+int(payloadLen)+crcSize)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+int(payloadLen)])
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], crc)
	return buf
}

func (w *WAL) rotate() error {
	if err := w.sync(); err != nil {
		return errors.Wrap(err, "entry: sync before rotate")
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}

	w.current = seg
	return nil
}

// Sync makes every appended record durable. It is a no-op when nothing was
// appended since the last fsync.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sync()
}

// Unsynced reports how many appended bytes are not yet fsynced.
func (w *WAL) Unsynced() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unsynced
}

func (w *WAL) sync() error {
	if w.unsynced == 0 {
		return nil
	}
	if err := w.current.sync(); err != nil {
		return err
	}
	w.unsynced = 0
	return nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.current.sync()
	return w.current.close()
}

// TruncateBefore removes closed segments whose records are all <= seq.
// The segment being written is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := listSegments(w.dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		if path == w.current.path {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return errors.Wrapf(err, "entry: remove %s", path)
			}
		}
	}
	return nil
}
