package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveCommand(t *testing.T) {
	m := New()
	m.ObserveCommand("swap_a_for_b", nil, time.Millisecond)
	m.ObserveCommand("swap_a_for_b", nil, time.Millisecond)
	m.ObserveCommand("swap_a_for_b", errors.New("no liquidity"), time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("swap_a_for_b", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("swap_a_for_b", "rejected")))
}

func TestGaugesAndHandler(t *testing.T) {
	m := New()
	m.SetReserve("A", 110)
	m.SetSequence(42)
	m.SetOutboxPending(3)
	m.EventPublished()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`simpledex_pool_reserve{asset="A"} 110`,
		"simpledex_sequence 42",
		"simpledex_broadcaster_outbox_pending 3",
		"simpledex_broadcaster_events_published_total 1",
	} {
		require.True(t, strings.Contains(body, want), "missing %q", want)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCommand("mint", nil, time.Second)
	m.SetReserve("A", 1)
	m.SetSequence(1)
	m.SetSnapshotSequence(1)
	m.EventPublished()
	m.PublishFailed()
	m.SetOutboxPending(1)
}
