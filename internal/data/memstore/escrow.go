package memstore

import (
	"context"
	"fmt"

	"service-engagement/internal/data/entity"
	"service-engagement/pkg/apperr"

	"github.com/google/uuid"
)

type escrowRepo struct{ v *view }

func (r *escrowRepo) CreateIfAbsent(ctx context.Context, hold *entity.EscrowHold) (*entity.EscrowHold, bool, error) {
	var (
		out     *entity.EscrowHold
		created bool
	)
	err := r.v.do(func(st *state) error {
		if existing, ok := st.holds[hold.BookingID]; ok {
			out = existing.Clone()
			return nil
		}
		st.holds[hold.BookingID] = hold.Clone()
		out = hold.Clone()
		created = true
		return nil
	})
	return out, created, err
}

func (r *escrowRepo) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.EscrowHold, error) {
	var out *entity.EscrowHold
	err := r.v.do(func(st *state) error {
		out = st.holds[bookingID].Clone()
		return nil
	})
	return out, err
}

func (r *escrowRepo) Update(ctx context.Context, hold *entity.EscrowHold, expectedVersion int64) error {
	return r.v.do(func(st *state) error {
		stored, ok := st.holds[hold.BookingID]
		if !ok || stored.ID != hold.ID {
			return fmt.Errorf("escrow hold %s not found", hold.ID)
		}
		if stored.Version != expectedVersion {
			return apperr.Conflict("update escrow hold", "hold %s is no longer at version %d", hold.ID, expectedVersion)
		}
		next := hold.Clone()
		next.Version = expectedVersion + 1
		st.holds[hold.BookingID] = next
		hold.Version = next.Version
		return nil
	})
}
