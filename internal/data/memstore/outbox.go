package memstore

import (
	"context"
	"time"

	"service-engagement/internal/data/entity"
)

type outboxRepo struct{ v *view }

func (r *outboxRepo) Enqueue(ctx context.Context, msg *entity.OutboxMessage) (bool, error) {
	var added bool
	err := r.v.do(func(st *state) error {
		for _, m := range st.outbox {
			if m.IdempotencyKey == msg.IdempotencyKey {
				return nil
			}
		}
		st.outboxSeq++
		cp := *msg
		cp.ID = st.outboxSeq
		cp.Status = entity.OutboxStatusPending
		cp.NextAttemptAt = msg.CreatedAt
		st.outbox = append(st.outbox, &cp)
		msg.ID = cp.ID
		added = true
		return nil
	})
	return added, err
}

func (r *outboxRepo) Claim(ctx context.Context, limit int, staleAfter time.Duration) ([]*entity.OutboxMessage, error) {
	var out []*entity.OutboxMessage
	err := r.v.do(func(st *state) error {
		now := r.v.store.now()
		for _, m := range st.outbox {
			if limit > 0 && len(out) >= limit {
				break
			}
			due := m.Status == entity.OutboxStatusPending && !m.NextAttemptAt.After(now)
			// NextAttemptAt doubles as the processing start while claimed
			stale := m.Status == entity.OutboxStatusProcessing && now.Sub(m.NextAttemptAt) > staleAfter
			if !due && !stale {
				continue
			}
			m.Status = entity.OutboxStatusProcessing
			m.Attempts++
			m.NextAttemptAt = now
			cp := *m
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func (r *outboxRepo) find(st *state, id int64) *entity.OutboxMessage {
	for _, m := range st.outbox {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *outboxRepo) MarkPublished(ctx context.Context, id int64) error {
	return r.v.do(func(st *state) error {
		if m := r.find(st, id); m != nil {
			now := r.v.store.now()
			m.Status = entity.OutboxStatusPublished
			m.PublishedAt = &now
			m.LastError = nil
		}
		return nil
	})
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id int64, retryAfter time.Duration, reason string) error {
	return r.v.do(func(st *state) error {
		if m := r.find(st, id); m != nil {
			m.Status = entity.OutboxStatusPending
			m.NextAttemptAt = r.v.store.now().Add(retryAfter)
			m.LastError = &reason
		}
		return nil
	})
}
