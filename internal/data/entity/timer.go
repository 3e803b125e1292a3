package entity

import (
	"time"

	"github.com/google/uuid"
)

type TimerKind string

const (
	// TimerAutoRelease is owned by a booking: settles it and releases the hold.
	TimerAutoRelease TimerKind = "auto_release"
	// TimerProviderResponseDeadline is owned by a rectification: escalates it.
	TimerProviderResponseDeadline TimerKind = "provider_response_deadline"
	// TimerObservationExpiry is owned by a rectification in fix_complete: resolves it.
	TimerObservationExpiry TimerKind = "observation_expiry"
)

func (k TimerKind) Valid() bool {
	switch k {
	case TimerAutoRelease, TimerProviderResponseDeadline, TimerObservationExpiry:
		return true
	}
	return false
}

type TimerEntry struct {
	BaseSimple
	OwnerID   uuid.UUID `db:"owner_id"`
	BookingID uuid.UUID `db:"booking_id"`
	Kind      TimerKind `db:"kind"`
	FiresAt   time.Time `db:"fires_at"`
	Version   int64     `db:"version"`

	// Attempts counts failed firings; FiresAt is pushed back after each.
	Attempts  int     `db:"attempts"`
	LastError *string `db:"last_error"`
}
