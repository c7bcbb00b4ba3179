package sequence

import "sync/atomic"

// Sequencer hands out the journal sequence numbers. Every command gets one,
// accepted or rejected, so the entry WAL is gap-free.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer whose last issued value is start.
// Fresh data dir → 0; after recovery → last replayed seq.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset is only used by recovery, before traffic is accepted.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
