package exit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// ExitRecord is one outbound event and its delivery state.
type ExitRecord struct {
	Seq         uint64
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recordHeader = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r ExitRecord) []byte {
	buf := make([]byte, recordHeader+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeader:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (ExitRecord, error) {
	if len(b) < recordHeader {
		return ExitRecord{}, errors.Newf("exit: record %d too short (%d bytes)", seq, len(b))
	}
	return ExitRecord{
		Seq:         seq,
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[recordHeader:]...),
	}, nil
}

// -------------------- WAL --------------------

// ExitWAL is the event outbox: events are stored NEW in the same step that
// commits the command, and the broadcaster moves them to ACKED.
type ExitWAL struct {
	db *pebble.DB
}

func Open(dir string) (*ExitWAL, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, errors.Wrapf(err, "exit: open %s", dir)
	}
	return &ExitWAL{db: db}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// PutNew stores a new event under the command's sequence.
func (w *ExitWAL) PutNew(seq uint64, payload []byte) error {
	rec := ExitRecord{Seq: seq, State: StateNew, Payload: payload}
	return w.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

func (w *ExitWAL) Has(seq uint64) (bool, error) {
	_, closer, err := w.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = closer.Close()
	return true, nil
}

// Get returns the current record for a sequence.
func (w *ExitWAL) Get(seq uint64) (ExitRecord, error) {
	val, closer, err := w.db.Get(keyFor(seq))
	if err != nil {
		return ExitRecord{}, err
	}
	defer closer.Close()

	return decodeRecord(seq, val)
}

func (w *ExitWAL) MarkSent(seq uint64) error {
	return w.transition(seq, StateSent, false)
}

func (w *ExitWAL) MarkAcked(seq uint64) error {
	return w.transition(seq, StateAcked, false)
}

// MarkFailed records a failed attempt; the event stays pending.
func (w *ExitWAL) MarkFailed(seq uint64) error {
	return w.transition(seq, StateFailed, true)
}

func (w *ExitWAL) transition(seq uint64, state ExitState, retry bool) error {
	rec, err := w.Get(seq)
	if err != nil {
		return errors.Wrapf(err, "exit: %s seq %d", state, seq)
	}
	rec.State = state
	rec.LastAttempt = time.Now().UnixNano()
	if retry {
		rec.Retries++
	}
	return w.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// -------------------- Scan --------------------

// ScanByState iterates all records in the given state, in sequence order.
func (w *ExitWAL) ScanByState(
	state ExitState,
	fn func(rec *ExitRecord) error,
) error {
	return w.scan(func(rec *ExitRecord) error {
		if rec.State != state {
			return nil
		}
		return fn(rec)
	})
}

// ScanPending iterates every record not yet ACKED. SENT records are included:
// a crash between send and ack means delivery is unconfirmed.
func (w *ExitWAL) ScanPending(fn func(rec *ExitRecord) error) error {
	return w.scan(func(rec *ExitRecord) error {
		if rec.State == StateAcked {
			return nil
		}
		return fn(rec)
	})
}

// Pending counts records not yet ACKED.
func (w *ExitWAL) Pending() (int, error) {
	n := 0
	err := w.ScanPending(func(*ExitRecord) error {
		n++
		return nil
	})
	return n, err
}

// TruncateAckedUpTo deletes ACKED records with seq <= upTo.
func (w *ExitWAL) TruncateAckedUpTo(upTo uint64) error {
	batch := w.db.NewBatch()
	defer batch.Close()

	err := w.scan(func(rec *ExitRecord) error {
		if rec.Seq > upTo {
			return errStopScan
		}
		if rec.State == StateAcked {
			return batch.Delete(keyFor(rec.Seq), nil)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return err
	}
	return batch.Commit(pebble.Sync)
}

var errStopScan = errors.New("stop scan")

func (w *ExitWAL) scan(fn func(rec *ExitRecord) error) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const keyPrefix = "event/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf(keyPrefix+"%020d", seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq)
	return seq, err
}
