package worker

import (
	"context"
	"errors"
	"time"

	"service-engagement/internal/data/repository"
	"service-engagement/pkg/apperr"
	"service-engagement/pkg/mq"

	"go.uber.org/zap"
)

const (
	claimStaleAfter = 2 * time.Minute
	maxRetryDelay   = 300 * time.Second
)

// OutboxDispatcher publishes committed events. Delivery is at-least-once;
// the idempotency key travels as the message id.
type OutboxDispatcher struct {
	outbox    repository.OutboxRepository
	publisher mq.Publisher
	batch     int
	log       *zap.Logger
}

func NewOutboxDispatcher(outbox repository.OutboxRepository, publisher mq.Publisher, batch int, log *zap.Logger) *OutboxDispatcher {
	if batch <= 0 {
		batch = 50
	}
	return &OutboxDispatcher{
		outbox:    outbox,
		publisher: publisher,
		batch:     batch,
		log:       log.With(zap.String("worker", "outbox")),
	}
}

// FlushOnce claims one batch and returns how many messages were published.
// Publish failures are marked for retry and come back joined, each as an
// external dependency error.
func (d *OutboxDispatcher) FlushOnce(ctx context.Context) (int, error) {
	messages, err := d.outbox.Claim(ctx, d.batch, claimStaleAfter)
	if err != nil {
		return 0, err
	}

	published := 0
	var failures []error
	for _, msg := range messages {
		if err := d.publisher.Publish(ctx, msg.RoutingKey, msg.IdempotencyKey, msg.Payload); err != nil {
			err = apperr.External("publish "+msg.RoutingKey, err)
			failures = append(failures, err)

			delay := retryDelay(msg.Attempts)
			d.log.Warn("Failed to publish outbox message",
				zap.Error(err),
				zap.Int64("id", msg.ID),
				zap.String("routing_key", msg.RoutingKey),
				zap.Int("attempts", msg.Attempts),
				zap.Duration("retry_in", delay),
			)
			if markErr := d.outbox.MarkFailed(ctx, msg.ID, delay, err.Error()); markErr != nil {
				d.log.Error("Failed to mark outbox message failed", zap.Error(markErr), zap.Int64("id", msg.ID))
			}
			continue
		}
		if err := d.outbox.MarkPublished(ctx, msg.ID); err != nil {
			d.log.Error("Failed to mark outbox message published", zap.Error(err), zap.Int64("id", msg.ID))
			continue
		}
		published++
	}
	return published, errors.Join(failures...)
}

// retryDelay starts at one second and doubles per attempt up to five minutes.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 9 {
		shift = 9
	}
	d := time.Duration(1<<shift) * time.Second
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
