package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bar-booking/internal/logging"
	"github.com/iliyamo/bar-booking/internal/metrics"
)

// OutboxRelay publishes unprocessed outbox events in creation order.  An
// event is marked processed only after the broker accepted it; a failed
// publish leaves it for the next cycle, so delivery is at least once.
type OutboxRelay struct {
	outbox    OutboxStore
	publisher EventPublisher
	batchSize int
	now       func() time.Time
}

func NewOutboxRelay(outbox OutboxStore, publisher EventPublisher, batchSize int, now func() time.Time) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if now == nil {
		now = time.Now
	}
	return &OutboxRelay{outbox: outbox, publisher: publisher, batchSize: batchSize, now: now}
}

// RelayResult summarizes one relay cycle.
type RelayResult struct {
	Read      int
	Published int
	Failed    int
}

// RunOnce performs a single relay cycle.  Only a failure to read the
// outbox is returned; per-event failures are logged and counted.
func (r *OutboxRelay) RunOnce(ctx context.Context) (RelayResult, error) {
	log := logging.FromContext(ctx)
	events, err := r.outbox.ListUnprocessed(ctx, r.batchSize)
	if err != nil {
		return RelayResult{}, err
	}
	res := RelayResult{Read: len(events)}
	metrics.OutboxBacklog.Set(float64(len(events)))

	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		key := ev.EventType.RoutingKey()
		elog := log.WithFields(logrus.Fields{"event_id": ev.ID, "event_type": ev.EventType, "routing_key": key})
		if err := r.publisher.Publish(ctx, key, ev); err != nil {
			res.Failed++
			metrics.OutboxPublishFailed.WithLabelValues(string(ev.EventType)).Inc()
			elog.WithError(err).Warn("outbox: publish failed, will retry next cycle")
			continue
		}
		if err := r.outbox.MarkProcessed(ctx, ev.ID, r.now()); err != nil {
			// The event was delivered; it will be delivered again next cycle.
			elog.WithError(err).Error("outbox: could not mark event processed")
			continue
		}
		res.Published++
		metrics.OutboxPublished.WithLabelValues(string(ev.EventType)).Inc()
		elog.Debug("outbox: event published")
	}
	if res.Read > 0 {
		log.WithFields(logrus.Fields{"read": res.Read, "published": res.Published, "failed": res.Failed}).Info("outbox: relay cycle done")
	}
	return res, nil
}

// Prune deletes processed events older than retention.
func (r *OutboxRelay) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := r.outbox.DeleteProcessedBefore(ctx, r.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx).WithField("deleted", n).Info("outbox: pruned processed events")
	return n, nil
}
