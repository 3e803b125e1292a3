package repository

import (
	"context"
	"fmt"

	"service-engagement/internal/data/entity"
	"service-engagement/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditRepository is append-only: there is no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*entity.AuditEntry, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*entity.AuditEntry, error)
}

const auditColumns = `seq, id, entity_type, entity_id, booking_id, from_state, to_state, actor_id, actor_role, metadata, created_at`

type auditRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewAuditRepository(db database.Querier, log *zap.Logger) AuditRepository {
	return &auditRepository{
		db:  db,
		log: log.With(zap.String("repository", "audit")),
	}
}

func (r *auditRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, entity_type, entity_id, booking_id, from_state, to_state, actor_id, actor_role, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	err := r.db.QueryRow(ctx, query,
		entry.ID,
		entry.EntityType,
		entry.EntityID,
		entry.BookingID,
		entry.FromState,
		entry.ToState,
		entry.ActorID,
		entry.ActorRole,
		metadata,
		entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		r.log.Error("Failed to append audit entry",
			zap.Error(err),
			zap.String("entity_type", string(entry.EntityType)),
			zap.String("entity_id", entry.EntityID.String()),
		)
		return fmt.Errorf("append audit entry for %s %s: %w", entry.EntityType, entry.EntityID, err)
	}
	return nil
}

func (r *auditRepository) list(ctx context.Context, column string, id uuid.UUID) ([]*entity.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log WHERE ` + column + ` = $1 ORDER BY seq`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to read timeline", zap.Error(err), zap.String(column, id.String()))
		return nil, fmt.Errorf("read timeline %s: %w", id, err)
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var e entity.AuditEntry
		if err := rows.Scan(
			&e.Seq,
			&e.ID,
			&e.EntityType,
			&e.EntityID,
			&e.BookingID,
			&e.FromState,
			&e.ToState,
			&e.ActorID,
			&e.ActorRole,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *auditRepository) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*entity.AuditEntry, error) {
	return r.list(ctx, "entity_id", entityID)
}

func (r *auditRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*entity.AuditEntry, error) {
	return r.list(ctx, "booking_id", bookingID)
}
