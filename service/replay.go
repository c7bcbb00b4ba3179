package service

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"simpledex/domain/amm"
	"simpledex/domain/ledger"
	entrywal "simpledex/infra/wal/entry"
	"simpledex/snapshot"
)

// RecoveryStats summarizes one Recover run.
type RecoveryStats struct {
	SnapshotSeq uint64
	LastSeq     uint64
	Replayed    int
	Rejected    int
	Requeued    int
}

/*
Recover rebuilds in-memory state from the latest snapshot plus the entry WAL.

IMPORTANT:
  - This MUST run before accepting traffic
  - Exit WAL is NOT replayed; entries missing from it are re-created
*/
func (s *ExchangeService) Recover(snapshotPath string) (RecoveryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats RecoveryStats

	snap, err := snapshot.Load(snapshotPath)
	if err != nil {
		return stats, err
	}
	if snap != nil {
		if err := s.restore(snap); err != nil {
			return stats, errors.Wrap(err, "restore snapshot")
		}
		stats.SnapshotSeq = snap.Seq
	}

	lastSeq, err := entrywal.Replay(s.entryWAL.Dir(), stats.SnapshotSeq, func(rec *entrywal.Record) error {
		c, err := decodeCommand(rec)
		if err != nil {
			return err
		}
		stats.Replayed++

		_, events, err := s.apply(c)
		if err != nil {
			stats.Rejected++
			return nil
		}

		ok, err := s.exitWAL.Has(rec.Seq)
		if err != nil {
			return err
		}
		if !ok && len(events) > 0 {
			stats.Requeued++
			return s.outbox(rec, events)
		}
		return nil
	})
	if err != nil {
		return stats, errors.Wrap(err, "replay entry wal")
	}

	// Resume sequencing AFTER replay
	stats.LastSeq = max(lastSeq, stats.SnapshotSeq)
	s.seqGen.Reset(stats.LastSeq)
	s.metrics.SetSequence(stats.LastSeq)
	s.metrics.SetSnapshotSequence(stats.SnapshotSeq)
	s.observeReserves()

	if s.st != nil {
		if err := s.st.exchange.CheckInvariants(); err != nil {
			return stats, errors.Wrap(err, "post-recovery audit")
		}
	}

	s.log.Info("recovery completed",
		zap.Uint64("snapshotSeq", stats.SnapshotSeq),
		zap.Uint64("lastSeq", stats.LastSeq),
		zap.Int("replayed", stats.Replayed),
		zap.Int("rejected", stats.Rejected),
		zap.Int("requeued", stats.Requeued))
	return stats, nil
}

func (s *ExchangeService) restore(snap *snapshot.Snapshot) error {
	tokens, err := snap.TokenStates()
	if err != nil {
		return err
	}
	if len(tokens) != 2 {
		return errors.Newf("snapshot holds %d tokens, want 2", len(tokens))
	}
	exState, err := snap.ExchangeState()
	if err != nil {
		return err
	}

	st := &state{recorder: &amm.Recorder{}}
	if st.tokenA, err = ledger.Restore(tokens[0]); err != nil {
		return err
	}
	if st.tokenB, err = ledger.Restore(tokens[1]); err != nil {
		return err
	}
	if st.exchange, err = amm.Restore(exState, st.tokenA, st.tokenB, st.recorder); err != nil {
		return err
	}
	s.st = st
	return nil
}
