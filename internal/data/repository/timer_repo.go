package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type TimerRepository interface {
	// Upsert schedules entry, replacing any entry with the same owner and kind.
	Upsert(ctx context.Context, entry *entity.TimerEntry) error
	// Delete removes the owner's timer of the given kind.
	Delete(ctx context.Context, ownerID uuid.UUID, kind entity.TimerKind) (bool, error)
	// DeleteEntry removes exactly this entry; false means it was already
	// fired, cancelled or replaced.
	DeleteEntry(ctx context.Context, id uuid.UUID) (bool, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.TimerEntry, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]*entity.TimerEntry, error)
	// Reschedule records a failed firing and moves the entry to firesAt.
	// It returns the new attempt count, or 0 when the entry is gone.
	Reschedule(ctx context.Context, id uuid.UUID, firesAt time.Time, reason string) (int, error)
}

const timerColumns = `id, owner_id, booking_id, kind, fires_at, version, attempts, last_error, created_at`

type timerRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewTimerRepository(db database.Querier, log *zap.Logger) TimerRepository {
	return &timerRepository{
		db:  db,
		log: log.With(zap.String("repository", "timer")),
	}
}

func scanTimer(row pgx.Row) (*entity.TimerEntry, error) {
	var t entity.TimerEntry
	if err := row.Scan(&t.ID, &t.OwnerID, &t.BookingID, &t.Kind, &t.FiresAt, &t.Version, &t.Attempts, &t.LastError, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *timerRepository) Upsert(ctx context.Context, entry *entity.TimerEntry) error {
	query := `
		INSERT INTO timers (` + timerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, 0, NULL, $7)
		ON CONFLICT (owner_id, kind) DO UPDATE
		SET id = EXCLUDED.id, fires_at = EXCLUDED.fires_at, version = EXCLUDED.version,
		    attempts = 0, last_error = NULL, created_at = EXCLUDED.created_at
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.OwnerID,
		entry.BookingID,
		entry.Kind,
		entry.FiresAt,
		entry.Version,
		entry.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to schedule timer",
			zap.Error(err),
			zap.String("owner_id", entry.OwnerID.String()),
			zap.String("kind", string(entry.Kind)),
		)
		return fmt.Errorf("schedule %s timer for %s: %w", entry.Kind, entry.OwnerID, err)
	}
	return nil
}

func (r *timerRepository) Delete(ctx context.Context, ownerID uuid.UUID, kind entity.TimerKind) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM timers WHERE owner_id = $1 AND kind = $2`, ownerID, kind)
	if err != nil {
		r.log.Error("Failed to cancel timer",
			zap.Error(err),
			zap.String("owner_id", ownerID.String()),
			zap.String("kind", string(kind)),
		)
		return false, fmt.Errorf("cancel %s timer for %s: %w", kind, ownerID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *timerRepository) DeleteEntry(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM timers WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to delete timer entry", zap.Error(err), zap.String("timer_id", id.String()))
		return false, fmt.Errorf("delete timer %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *timerRepository) queryMany(ctx context.Context, query string, args ...any) ([]*entity.TimerEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query timers", zap.Error(err))
		return nil, fmt.Errorf("query timers: %w", err)
	}
	defer rows.Close()

	var entries []*entity.TimerEntry
	for rows.Next() {
		entry, err := scanTimer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timer row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *timerRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.TimerEntry, error) {
	return r.queryMany(ctx, `SELECT `+timerColumns+` FROM timers WHERE owner_id = $1 ORDER BY fires_at`, ownerID)
}

func (r *timerRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*entity.TimerEntry, error) {
	return r.queryMany(ctx,
		`SELECT `+timerColumns+` FROM timers WHERE fires_at <= $1 ORDER BY fires_at LIMIT $2`,
		now, limit)
}

func (r *timerRepository) Reschedule(ctx context.Context, id uuid.UUID, firesAt time.Time, reason string) (int, error) {
	query := `
		UPDATE timers
		SET attempts = attempts + 1, fires_at = $2, last_error = $3
		WHERE id = $1
		RETURNING attempts
	`

	var attempts int
	err := r.db.QueryRow(ctx, query, id, firesAt, reason).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		r.log.Error("Failed to reschedule timer", zap.Error(err), zap.String("timer_id", id.String()))
		return 0, fmt.Errorf("reschedule timer %s: %w", id, err)
	}
	return attempts, nil
}
