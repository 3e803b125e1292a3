package entity

import "time"

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusPublished  OutboxStatus = "published"
)

// OutboxMessage is a domain event waiting to be published after commit.
// IdempotencyKey is unique: bookingId:transition.
type OutboxMessage struct {
	ID             int64        `db:"id"`
	IdempotencyKey string       `db:"idempotency_key"`
	RoutingKey     string       `db:"routing_key"`
	Payload        []byte       `db:"payload"`
	Status         OutboxStatus `db:"status"`
	Attempts       int          `db:"attempts"`
	NextAttemptAt  time.Time    `db:"next_attempt_at"`
	LastError      *string      `db:"last_error"`
	CreatedAt      time.Time    `db:"created_at"`
	PublishedAt    *time.Time   `db:"published_at"`
}
