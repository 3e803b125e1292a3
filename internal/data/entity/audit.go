package entity

import (
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityBooking       EntityType = "booking"
	EntityEscrowHold    EntityType = "escrow_hold"
	EntityRectification EntityType = "rectification"
)

// AuditEntry is immutable once recorded.
type AuditEntry struct {
	Seq        int64          `db:"seq"`
	ID         uuid.UUID      `db:"id"`
	EntityType EntityType     `db:"entity_type"`
	EntityID   uuid.UUID      `db:"entity_id"`
	BookingID  uuid.UUID      `db:"booking_id"`
	FromState  string         `db:"from_state"`
	ToState    string         `db:"to_state"`
	ActorID    uuid.UUID      `db:"actor_id"`
	ActorRole  ActorRole      `db:"actor_role"`
	Metadata   map[string]any `db:"metadata"`
	CreatedAt  time.Time      `db:"created_at"`
}
