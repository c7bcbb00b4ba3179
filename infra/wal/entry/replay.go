package entry

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

var (
	ErrCorrupt      = errors.New("entry: crc mismatch")
	ErrNonMonotonic = errors.New("entry: non-monotonic seq")
)

type ReplayHandler func(*Record) error

// Replay feeds every record with Seq > fromSeq to fn, in order, and returns
// the highest sequence seen. A torn frame at the very end of the newest
// non-empty segment is a crash mid-append and ends the log; anywhere else it is
// corruption.
func Replay(dir string, fromSeq uint64, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := listSegments(dir)
	if err != nil {
		return 0, err
	}

	// Open always starts a fresh segment, so the segment a crash tore may be
	// followed by empty ones.
	tail := len(files) - 1
	for tail > 0 {
		info, err := os.Stat(files[tail])
		if err != nil {
			return 0, err
		}
		if info.Size() > 0 {
			break
		}
		tail--
	}

	for i, path := range files {
		last := i >= tail
		lastSeq, err = replaySegment(path, last, lastSeq, fromSeq, fn)
		if err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, last bool, lastSeq, fromSeq uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, err
	}
	defer f.Close()

	for {
		rec, err := readRecord(f)
		if err != nil {
			if err == io.EOF {
				return lastSeq, nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) && last {
				return lastSeq, nil
			}
			return lastSeq, errors.Wrapf(err, "entry: read %s", path)
		}

		if rec.Seq <= lastSeq {
			return lastSeq, errors.Wrapf(ErrNonMonotonic, "%d after %d", rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if rec.Seq <= fromSeq {
			continue
		}
		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])

	data := make([]byte, int(l)+crcSize)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	frame := make([]byte, 0, headerSize+int(l))
	frame = append(frame, header...)
	frame = append(frame, data[:l]...)
	crc := binary.BigEndian.Uint32(data[l:])

	if !CRC32Valid(frame, crc) {
		return nil, errors.Wrapf(ErrCorrupt, "seq %d", seq)
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: data[:l],
	}, nil
}
