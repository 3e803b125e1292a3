package memstore

import (
	"context"

	"service-engagement/internal/data/entity"

	"github.com/google/uuid"
)

type auditRepo struct{ v *view }

func (r *auditRepo) Append(ctx context.Context, entry *entity.AuditEntry) error {
	return r.v.do(func(st *state) error {
		st.auditSeq++
		entry.Seq = st.auditSeq
		cp := *entry
		st.audit = append(st.audit, &cp)
		return nil
	})
}

func (r *auditRepo) list(keep func(*entity.AuditEntry) bool) ([]*entity.AuditEntry, error) {
	var out []*entity.AuditEntry
	err := r.v.do(func(st *state) error {
		for _, e := range st.audit {
			if keep(e) {
				cp := *e
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

func (r *auditRepo) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*entity.AuditEntry, error) {
	return r.list(func(e *entity.AuditEntry) bool { return e.EntityID == entityID })
}

func (r *auditRepo) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*entity.AuditEntry, error) {
	return r.list(func(e *entity.AuditEntry) bool { return e.BookingID == bookingID })
}
