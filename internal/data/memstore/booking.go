package memstore

import (
	"context"
	"fmt"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/pkg/apperr"

	"github.com/google/uuid"
)

type bookingRepo struct{ v *view }

func (r *bookingRepo) Create(ctx context.Context, booking *entity.Booking) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.bookings[booking.ID]; ok {
			return apperr.Conflict("create booking", "booking %s already exists", booking.ID)
		}
		st.bookings[booking.ID] = booking.Clone()
		return nil
	})
}

func (r *bookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	var out *entity.Booking
	err := r.v.do(func(st *state) error {
		out = st.bookings[id].Clone()
		return nil
	})
	return out, err
}

func matchBooking(b *entity.Booking, f entity.BookingFilter) bool {
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.CategoryTag != "" && b.CategoryTag != f.CategoryTag {
		return false
	}
	if f.ClientID != uuid.Nil && b.ClientID != f.ClientID {
		return false
	}
	if f.ProviderID != uuid.Nil && b.ProviderID != f.ProviderID {
		return false
	}
	return true
}

func (r *bookingRepo) filtered(st *state, f entity.BookingFilter) []*entity.Booking {
	var out []*entity.Booking
	for _, b := range st.bookings {
		if matchBooking(b, f) {
			out = append(out, b.Clone())
		}
	}
	sortNewestFirst(out, func(b *entity.Booking) time.Time { return b.CreatedAt })
	return out
}

func (r *bookingRepo) List(ctx context.Context, filter entity.BookingFilter, limit, offset int) ([]*entity.Booking, error) {
	var out []*entity.Booking
	err := r.v.do(func(st *state) error {
		out = page(r.filtered(st, filter), limit, offset)
		return nil
	})
	return out, err
}

func (r *bookingRepo) Count(ctx context.Context, filter entity.BookingFilter) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		n = int64(len(r.filtered(st, filter)))
		return nil
	})
	return n, err
}

func (r *bookingRepo) Update(ctx context.Context, booking *entity.Booking, expectedVersion int64) error {
	return r.v.do(func(st *state) error {
		stored, ok := st.bookings[booking.ID]
		if !ok {
			return fmt.Errorf("booking %s not found", booking.ID)
		}
		if stored.StatusVersion != expectedVersion {
			return apperr.Conflict("update booking", "booking %s is no longer at version %d", booking.ID, expectedVersion)
		}
		next := booking.Clone()
		next.StatusVersion = expectedVersion + 1
		next.CreatedAt = stored.CreatedAt
		st.bookings[booking.ID] = next
		booking.StatusVersion = next.StatusVersion
		return nil
	})
}
