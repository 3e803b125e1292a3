package repository

import (
	"context"
	"errors"
	"fmt"

	"service-engagement/pkg/apperr"
	"service-engagement/pkg/database"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Repository groups the ledger tables. A Repository handed out by
// Store.WithinTx is bound to that transaction.
type Repository struct {
	Booking       BookingRepository
	Escrow        EscrowRepository
	Rectification RectificationRepository
	Timer         TimerRepository
	Audit         AuditRepository
	Outbox        OutboxRepository
}

// Store is the ledger store. Implementations are chosen once at startup.
type Store interface {
	Repos() *Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo *Repository) error) error
}

func NewRepository(db database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		Booking:       NewBookingRepository(db, log),
		Escrow:        NewEscrowRepository(db, log),
		Rectification: NewRectificationRepository(db, log),
		Timer:         NewTimerRepository(db, log),
		Audit:         NewAuditRepository(db, log),
		Outbox:        NewOutboxRepository(db, log),
	}
}

type postgresStore struct {
	db    database.PgxIface
	repos *Repository
	log   *zap.Logger
}

func NewPostgresStore(db database.PgxIface, log *zap.Logger) Store {
	return &postgresStore{
		db:    db,
		repos: NewRepository(db, log),
		log:   log.With(zap.String("store", "postgres")),
	}
}

func (s *postgresStore) Repos() *Repository {
	return s.repos
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo *Repository) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, NewRepository(tx, s.log)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		s.log.Error("Failed to commit transaction", zap.Error(err))
		return mapWriteError("commit", err)
	}
	return nil
}

const uniqueViolation = "23505"

// mapWriteError turns a unique-key race into a ConflictError so callers can
// reload and retry.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperr.Conflict(op, "concurrent write on %s", pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
