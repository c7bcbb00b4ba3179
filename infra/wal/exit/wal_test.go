package exit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *ExitWAL {
	t.Helper()
	w, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestLifecycle(t *testing.T) {
	w := openTemp(t)

	require.NoError(t, w.PutNew(7, []byte(`{"type":"Swap"}`)))
	ok, err := w.Has(7)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = w.Has(8)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, w.MarkSent(7))
	require.NoError(t, w.MarkFailed(7))
	rec, err := w.Get(7)
	require.NoError(t, err)
	require.Equal(t, StateFailed, rec.State)
	require.Equal(t, uint32(1), rec.Retries)
	require.Equal(t, []byte(`{"type":"Swap"}`), rec.Payload)

	require.NoError(t, w.MarkAcked(7))
	n, err := w.Pending()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestScanPendingOrder(t *testing.T) {
	w := openTemp(t)
	for _, seq := range []uint64{12, 3, 100, 9} {
		require.NoError(t, w.PutNew(seq, []byte("x")))
	}
	require.NoError(t, w.MarkAcked(9))
	require.NoError(t, w.MarkSent(100))

	var seqs []uint64
	require.NoError(t, w.ScanPending(func(rec *ExitRecord) error {
		seqs = append(seqs, rec.Seq)
		return nil
	}))
	require.Equal(t, []uint64{3, 12, 100}, seqs)

	var sent []uint64
	require.NoError(t, w.ScanByState(StateSent, func(rec *ExitRecord) error {
		sent = append(sent, rec.Seq)
		return nil
	}))
	require.Equal(t, []uint64{100}, sent)
}

func TestTruncateAckedUpTo(t *testing.T) {
	w := openTemp(t)
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, w.PutNew(seq, []byte("x")))
	}
	require.NoError(t, w.MarkAcked(1))
	require.NoError(t, w.MarkAcked(2))
	require.NoError(t, w.MarkAcked(5))

	require.NoError(t, w.TruncateAckedUpTo(4))

	for seq, want := range map[uint64]bool{1: false, 2: false, 3: true, 4: true, 5: true} {
		ok, err := w.Has(seq)
		require.NoError(t, err)
		require.Equal(t, want, ok, "seq %d", seq)
	}
}
