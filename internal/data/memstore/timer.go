package memstore

import (
	"context"
	"sort"
	"time"

	"service-engagement/internal/data/entity"

	"github.com/google/uuid"
)

type timerRepo struct{ v *view }

func (r *timerRepo) Upsert(ctx context.Context, entry *entity.TimerEntry) error {
	return r.v.do(func(st *state) error {
		cp := *entry
		cp.Attempts = 0
		cp.LastError = nil
		st.timers[timerKey{owner: entry.OwnerID, kind: entry.Kind}] = &cp
		return nil
	})
}

func (r *timerRepo) Delete(ctx context.Context, ownerID uuid.UUID, kind entity.TimerKind) (bool, error) {
	var removed bool
	err := r.v.do(func(st *state) error {
		key := timerKey{owner: ownerID, kind: kind}
		_, removed = st.timers[key]
		delete(st.timers, key)
		return nil
	})
	return removed, err
}

func (r *timerRepo) DeleteEntry(ctx context.Context, id uuid.UUID) (bool, error) {
	var removed bool
	err := r.v.do(func(st *state) error {
		for key, t := range st.timers {
			if t.ID == id {
				delete(st.timers, key)
				removed = true
				break
			}
		}
		return nil
	})
	return removed, err
}

func sortByFiresAt(entries []*entity.TimerEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].FiresAt.Before(entries[j].FiresAt) })
}

func (r *timerRepo) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.TimerEntry, error) {
	var out []*entity.TimerEntry
	err := r.v.do(func(st *state) error {
		for _, t := range st.timers {
			if t.OwnerID == ownerID {
				cp := *t
				out = append(out, &cp)
			}
		}
		sortByFiresAt(out)
		return nil
	})
	return out, err
}

func (r *timerRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]*entity.TimerEntry, error) {
	var out []*entity.TimerEntry
	err := r.v.do(func(st *state) error {
		for _, t := range st.timers {
			if !t.FiresAt.After(now) {
				cp := *t
				out = append(out, &cp)
			}
		}
		sortByFiresAt(out)
		out = page(out, limit, 0)
		return nil
	})
	return out, err
}

func (r *timerRepo) Reschedule(ctx context.Context, id uuid.UUID, firesAt time.Time, reason string) (int, error) {
	var attempts int
	err := r.v.do(func(st *state) error {
		for _, t := range st.timers {
			if t.ID == id {
				t.Attempts++
				t.FiresAt = firesAt
				t.LastError = &reason
				attempts = t.Attempts
				break
			}
		}
		return nil
	})
	return attempts, err
}
