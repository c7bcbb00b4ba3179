package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProducerValidates(t *testing.T) {
	_, err := NewProducer(nil, "simpledex.events", nil)
	require.Error(t, err)

	_, err = NewProducer([]string{"127.0.0.1:9092"}, "", nil)
	require.Error(t, err)
}

func TestPublishUnreachableBroker(t *testing.T) {
	p, err := NewProducer([]string{"127.0.0.1:1"}, "simpledex.events", zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err = p.Publish(ctx, []byte("1"), []byte(`{"v":1,"seq":1}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "simpledex.events")
}
