package broadcaster

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"simpledex/infra/metrics"
	exitwal "simpledex/infra/wal/exit"
)

// Publisher delivers one event to the outside world. Publish must not return
// until the broker has acknowledged the message.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

type Broadcaster struct {
	exitWAL  *exitwal.ExitWAL
	pub      Publisher
	interval time.Duration
	timeout  time.Duration

	log     *zap.Logger
	metrics *metrics.Metrics

	started atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	exitWAL *exitwal.ExitWAL,
	pub Publisher,
	interval time.Duration,
	log *zap.Logger,
	m *metrics.Metrics,
) *Broadcaster {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		exitWAL:  exitWAL,
		pub:      pub,
		interval: interval,
		timeout:  10 * time.Second,
		log:      log.Named("broadcaster"),
		metrics:  m,
		done:     make(chan struct{}),
	}
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

// Start runs the delivery loop until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	b.started.Store(true)
	b.log.Info("started", zap.Duration("interval", b.interval))

	go func() {
		defer close(b.done)

		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				if _, err := b.Flush(ctx); err != nil && ctx.Err() == nil {
					b.log.Warn("delivery paused", zap.Error(err))
				}
			}
		}
	}()
}

// ------------------------------------------------
// DELIVERY
// ------------------------------------------------

/*
Flush delivers pending events in sequence order:

	NEW/FAILED/SENT -> SENT -> publish -> ACKED
	                            \-> FAILED (retries++)

The first failure stops the pass so a later event never overtakes an earlier
one. Delivery is at-least-once; consumers dedupe on the sequence key.
*/
func (b *Broadcaster) Flush(ctx context.Context) (int, error) {
	sent := 0
	err := b.exitWAL.ScanPending(func(rec *exitwal.ExitRecord) error {
		if err := b.exitWAL.MarkSent(rec.Seq); err != nil {
			return err
		}

		pctx, cancel := context.WithTimeout(ctx, b.timeout)
		err := b.pub.Publish(pctx, []byte(strconv.FormatUint(rec.Seq, 10)), rec.Payload)
		cancel()
		if err != nil {
			b.metrics.PublishFailed()
			if markErr := b.exitWAL.MarkFailed(rec.Seq); markErr != nil {
				err = errors.WithSecondaryError(err, markErr)
			}
			return errors.Wrapf(err, "publish seq %d (attempt %d)", rec.Seq, rec.Retries+1)
		}

		if err := b.exitWAL.MarkAcked(rec.Seq); err != nil {
			return err
		}
		b.metrics.EventPublished()
		sent++
		return nil
	})

	if pending, perr := b.exitWAL.Pending(); perr == nil {
		b.metrics.SetOutboxPending(pending)
	}
	if sent > 0 {
		b.log.Debug("delivered", zap.Int("events", sent))
	}
	return sent, err
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

// Close waits for a started loop to exit, makes one last delivery pass and
// closes the publisher. Cancel the Start context first.
func (b *Broadcaster) Close(ctx context.Context) error {
	var err error
	b.once.Do(func() {
		if b.started.Load() {
			select {
			case <-b.done:
			case <-ctx.Done():
				err = b.pub.Close()
				return
			}
		}
		if _, ferr := b.Flush(ctx); ferr != nil {
			b.log.Warn("final delivery incomplete", zap.Error(ferr))
		}
		err = b.pub.Close()
	})
	return err
}
