package memstore

import (
	"context"
	"fmt"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/pkg/apperr"

	"github.com/google/uuid"
)

type rectificationRepo struct{ v *view }

func openFor(st *state, bookingID uuid.UUID) *entity.Rectification {
	for _, r := range st.rects {
		if r.BookingID == bookingID && !r.Status.Terminal() {
			return r
		}
	}
	return nil
}

func (r *rectificationRepo) Create(ctx context.Context, rect *entity.Rectification) error {
	return r.v.do(func(st *state) error {
		if openFor(st, rect.BookingID) != nil {
			return apperr.Conflict("create rectification", "booking %s already has an open rectification", rect.BookingID)
		}
		st.rects[rect.ID] = rect.Clone()
		return nil
	})
}

func (r *rectificationRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Rectification, error) {
	var out *entity.Rectification
	err := r.v.do(func(st *state) error {
		out = st.rects[id].Clone()
		return nil
	})
	return out, err
}

func (r *rectificationRepo) FindOpenByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Rectification, error) {
	var out *entity.Rectification
	err := r.v.do(func(st *state) error {
		out = openFor(st, bookingID).Clone()
		return nil
	})
	return out, err
}

func (r *rectificationRepo) collect(st *state, keep func(*entity.Rectification) bool) []*entity.Rectification {
	var out []*entity.Rectification
	for _, rect := range st.rects {
		if keep(rect) {
			out = append(out, rect.Clone())
		}
	}
	return out
}

func (r *rectificationRepo) ListByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Rectification, error) {
	var out []*entity.Rectification
	err := r.v.do(func(st *state) error {
		out = r.collect(st, func(rect *entity.Rectification) bool { return rect.BookingID == bookingID })
		sortNewestFirst(out, func(rect *entity.Rectification) time.Time { return rect.CreatedAt })
		// oldest first, matching the SQL ordering
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return nil
	})
	return out, err
}

func (r *rectificationRepo) byStatus(st *state, status entity.RectificationStatus) []*entity.Rectification {
	out := r.collect(st, func(rect *entity.Rectification) bool { return status == "" || rect.Status == status })
	sortNewestFirst(out, func(rect *entity.Rectification) time.Time { return rect.CreatedAt })
	return out
}

func (r *rectificationRepo) List(ctx context.Context, status entity.RectificationStatus, limit, offset int) ([]*entity.Rectification, error) {
	var out []*entity.Rectification
	err := r.v.do(func(st *state) error {
		out = page(r.byStatus(st, status), limit, offset)
		return nil
	})
	return out, err
}

func (r *rectificationRepo) Count(ctx context.Context, status entity.RectificationStatus) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		n = int64(len(r.byStatus(st, status)))
		return nil
	})
	return n, err
}

func (r *rectificationRepo) Update(ctx context.Context, rect *entity.Rectification, expectedVersion int64) error {
	return r.v.do(func(st *state) error {
		stored, ok := st.rects[rect.ID]
		if !ok {
			return fmt.Errorf("rectification %s not found", rect.ID)
		}
		if stored.Version != expectedVersion {
			return apperr.Conflict("update rectification", "rectification %s is no longer at version %d", rect.ID, expectedVersion)
		}
		next := rect.Clone()
		next.Version = expectedVersion + 1
		st.rects[rect.ID] = next
		rect.Version = next.Version
		return nil
	})
}
