package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"simpledex/snapshot"
)

// TakeSnapshot writes a snapshot of the current state, then drops journal
// segments and acknowledged outbox entries it covers. It returns the covered
// sequence. Concurrent calls run one at a time, so truncation never outruns
// the snapshot on disk.
func (s *ExchangeService) TakeSnapshot(w *snapshot.Writer) (uint64, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	s.mu.RLock()
	if s.st == nil {
		s.mu.RUnlock()
		return 0, nil
	}
	seq := s.seqGen.Current()
	snap := snapshot.New(seq, s.st.exchange.State(), s.st.tokenA.State(), s.st.tokenB.State())
	s.mu.RUnlock()

	// Write snapshot
	if err := w.Write(snap); err != nil {
		return 0, err
	}
	s.metrics.SetSnapshotSequence(seq)

	// Truncate ENTRY WAL after snapshot
	if err := s.entryWAL.TruncateBefore(seq); err != nil {
		return seq, err
	}

	// GC EXIT WAL (acked only)
	return seq, s.exitWAL.TruncateAckedUpTo(seq)
}

// StartSnapshotJob snapshots every interval until ctx is done. The returned
// channel is closed once the job has exited.
func (s *ExchangeService) StartSnapshotJob(
	ctx context.Context,
	w *snapshot.Writer,
	interval time.Duration,
) <-chan struct{} {
	log := s.log.Named("snapshot")
	done := make(chan struct{})

	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()

		var last uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}

			if s.seqGen.Current() == last {
				continue
			}
			seq, err := s.TakeSnapshot(w)
			if err != nil {
				log.Warn("snapshot failed", zap.Error(err))
				continue
			}
			last = seq
			log.Info("snapshot written", zap.Uint64("seq", seq), zap.String("path", w.Path()))
		}
	}()
	return done
}
