package repository

import (
	"context"
	"fmt"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/pkg/database"

	"go.uber.org/zap"
)

type OutboxRepository interface {
	// Enqueue stores msg unless its idempotency key is already present.
	Enqueue(ctx context.Context, msg *entity.OutboxMessage) (bool, error)
	// Claim marks up to limit due messages as processing and returns them.
	// Messages stuck in processing for longer than staleAfter are reclaimed.
	Claim(ctx context.Context, limit int, staleAfter time.Duration) ([]*entity.OutboxMessage, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, retryAfter time.Duration, reason string) error
}

type outboxRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewOutboxRepository(db database.Querier, log *zap.Logger) OutboxRepository {
	return &outboxRepository{
		db:  db,
		log: log.With(zap.String("repository", "outbox")),
	}
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg *entity.OutboxMessage) (bool, error) {
	query := `
		INSERT INTO event_outbox (idempotency_key, routing_key, payload, created_at, next_attempt_at)
		VALUES ($1, $2, $3::jsonb, $4, $4)
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query, msg.IdempotencyKey, msg.RoutingKey, string(msg.Payload), msg.CreatedAt)
	if err != nil {
		r.log.Error("Failed to enqueue outbox message",
			zap.Error(err),
			zap.String("idempotency_key", msg.IdempotencyKey),
		)
		return false, fmt.Errorf("enqueue %s: %w", msg.IdempotencyKey, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *outboxRepository) Claim(ctx context.Context, limit int, staleAfter time.Duration) ([]*entity.OutboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	staleSeconds := int(staleAfter.Seconds())
	if staleSeconds <= 0 {
		staleSeconds = 120
	}

	query := `
		WITH candidates AS (
			SELECT id
			FROM event_outbox
			WHERE (
				(status = 'pending' AND next_attempt_at <= NOW())
				OR (status = 'processing' AND processing_started_at < NOW() - ($2 * INTERVAL '1 second'))
			)
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE event_outbox AS o
		SET status = 'processing',
			processing_started_at = NOW(),
			attempts = o.attempts + 1
		FROM candidates
		WHERE o.id = candidates.id
		RETURNING o.id, o.idempotency_key, o.routing_key, o.payload::text, o.attempts, o.created_at
	`

	rows, err := r.db.Query(ctx, query, limit, staleSeconds)
	if err != nil {
		r.log.Error("Failed to claim outbox messages", zap.Error(err))
		return nil, fmt.Errorf("claim outbox messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*entity.OutboxMessage, 0, limit)
	for rows.Next() {
		var (
			msg     entity.OutboxMessage
			payload string
		)
		if err := rows.Scan(&msg.ID, &msg.IdempotencyKey, &msg.RoutingKey, &payload, &msg.Attempts, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		msg.Payload = []byte(payload)
		msg.Status = entity.OutboxStatusProcessing
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE event_outbox
		SET status = 'published',
			published_at = NOW(),
			processing_started_at = NULL,
			last_error = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark outbox %d published: %w", id, err)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id int64, retryAfter time.Duration, reason string) error {
	retrySeconds := int(retryAfter.Seconds())
	if retrySeconds < 1 {
		retrySeconds = 1
	}
	if len(reason) > 2000 {
		reason = reason[:2000]
	}
	_, err := r.db.Exec(ctx, `
		UPDATE event_outbox
		SET status = 'pending',
			next_attempt_at = NOW() + ($2 * INTERVAL '1 second'),
			processing_started_at = NULL,
			last_error = $3
		WHERE id = $1
	`, id, retrySeconds, reason)
	if err != nil {
		return fmt.Errorf("mark outbox %d failed: %w", id, err)
	}
	return nil
}
