// Package memstore is an in-process ledger store. Transactions run one at a
// time against a private copy of the state, which replaces the committed
// state only when the callback succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/repository"

	"github.com/google/uuid"
)

type timerKey struct {
	owner uuid.UUID
	kind  entity.TimerKind
}

type state struct {
	bookings  map[uuid.UUID]*entity.Booking
	holds     map[uuid.UUID]*entity.EscrowHold // keyed by booking id
	rects     map[uuid.UUID]*entity.Rectification
	timers    map[timerKey]*entity.TimerEntry
	audit     []*entity.AuditEntry
	outbox    []*entity.OutboxMessage
	auditSeq  int64
	outboxSeq int64
}

func newState() *state {
	return &state{
		bookings: make(map[uuid.UUID]*entity.Booking),
		holds:    make(map[uuid.UUID]*entity.EscrowHold),
		rects:    make(map[uuid.UUID]*entity.Rectification),
		timers:   make(map[timerKey]*entity.TimerEntry),
	}
}

func (s *state) clone() *state {
	c := &state{
		bookings:  make(map[uuid.UUID]*entity.Booking, len(s.bookings)),
		holds:     make(map[uuid.UUID]*entity.EscrowHold, len(s.holds)),
		rects:     make(map[uuid.UUID]*entity.Rectification, len(s.rects)),
		timers:    make(map[timerKey]*entity.TimerEntry, len(s.timers)),
		audit:     make([]*entity.AuditEntry, len(s.audit)),
		outbox:    make([]*entity.OutboxMessage, len(s.outbox)),
		auditSeq:  s.auditSeq,
		outboxSeq: s.outboxSeq,
	}
	for k, v := range s.bookings {
		c.bookings[k] = v.Clone()
	}
	for k, v := range s.holds {
		c.holds[k] = v.Clone()
	}
	for k, v := range s.rects {
		c.rects[k] = v.Clone()
	}
	for k, v := range s.timers {
		t := *v
		c.timers[k] = &t
	}
	// audit entries are never mutated once appended
	copy(c.audit, s.audit)
	for i, m := range s.outbox {
		cp := *m
		c.outbox[i] = &cp
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	st    *state
	now   func() time.Time
	repos *repository.Repository
}

// New returns an empty store. now drives outbox scheduling; nil means time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	s := &Store{st: newState(), now: now}
	s.repos = newRepos(&view{store: s})
	return s
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Repos() *repository.Repository {
	return s.repos
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo *repository.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, newRepos(&view{store: s, tx: work})); err != nil {
		return err
	}
	s.st = work
	return nil
}

// view resolves which state a repository call reads: the transaction's
// working copy, or the committed state under the store lock.
type view struct {
	store *Store
	tx    *state
}

func (v *view) do(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func newRepos(v *view) *repository.Repository {
	return &repository.Repository{
		Booking:       &bookingRepo{v},
		Escrow:        &escrowRepo{v},
		Rectification: &rectificationRepo{v},
		Timer:         &timerRepo{v},
		Audit:         &auditRepo{v},
		Outbox:        &outboxRepo{v},
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func sortNewestFirst[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).After(created(items[j]))
	})
}
