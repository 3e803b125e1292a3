package repository

import (
	"context"
	"errors"
	"fmt"

	"service-engagement/internal/data/entity"
	"service-engagement/pkg/apperr"
	"service-engagement/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type RectificationRepository interface {
	// Create fails with a ConflictError when another open rectification
	// already exists for the booking.
	Create(ctx context.Context, rect *entity.Rectification) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Rectification, error)
	FindOpenByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Rectification, error)
	ListByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Rectification, error)
	List(ctx context.Context, status entity.RectificationStatus, limit, offset int) ([]*entity.Rectification, error)
	Count(ctx context.Context, status entity.RectificationStatus) (int64, error)
	Update(ctx context.Context, rect *entity.Rectification, expectedVersion int64) error
}

const rectificationColumns = `id, booking_id, reporter_id, category, description, photo_refs, status, version,
		provider_response, fix_date, fix_notes, fix_photos, escalation_reason, ruling, refund_amount, ruled_by,
		ruling_notes, resolved_at, created_at, updated_at`

type rectificationRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewRectificationRepository(db database.Querier, log *zap.Logger) RectificationRepository {
	return &rectificationRepository{
		db:  db,
		log: log.With(zap.String("repository", "rectification")),
	}
}

func scanRectification(row pgx.Row) (*entity.Rectification, error) {
	var (
		rect   entity.Rectification
		ruling *string
	)
	err := row.Scan(
		&rect.ID,
		&rect.BookingID,
		&rect.ReporterID,
		&rect.Category,
		&rect.Description,
		&rect.PhotoRefs,
		&rect.Status,
		&rect.Version,
		&rect.ProviderResponse,
		&rect.FixDate,
		&rect.FixNotes,
		&rect.FixPhotos,
		&rect.EscalationReason,
		&ruling,
		&rect.RefundAmount,
		&rect.RuledBy,
		&rect.RulingNotes,
		&rect.ResolvedAt,
		&rect.CreatedAt,
		&rect.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ruling != nil {
		v := entity.Ruling(*ruling)
		rect.Ruling = &v
	}
	return &rect, nil
}

func rulingArg(r *entity.Ruling) *string {
	if r == nil {
		return nil
	}
	v := string(*r)
	return &v
}

func (r *rectificationRepository) Create(ctx context.Context, rect *entity.Rectification) error {
	query := `
		INSERT INTO rectifications (` + rectificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.db.Exec(ctx, query,
		rect.ID,
		rect.BookingID,
		rect.ReporterID,
		rect.Category,
		rect.Description,
		nonNil(rect.PhotoRefs),
		rect.Status,
		rect.Version,
		rect.ProviderResponse,
		rect.FixDate,
		rect.FixNotes,
		nonNil(rect.FixPhotos),
		rect.EscalationReason,
		rulingArg(rect.Ruling),
		rect.RefundAmount,
		rect.RuledBy,
		rect.RulingNotes,
		rect.ResolvedAt,
		rect.CreatedAt,
		rect.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create rectification",
			zap.Error(err),
			zap.String("booking_id", rect.BookingID.String()),
		)
		return mapWriteError(fmt.Sprintf("create rectification for booking %s", rect.BookingID), err)
	}
	return nil
}

func (r *rectificationRepository) findOne(ctx context.Context, op, where string, arg any) (*entity.Rectification, error) {
	query := `SELECT ` + rectificationColumns + ` FROM rectifications WHERE ` + where

	rect, err := scanRectification(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to "+op, zap.Error(err), zap.Any("key", arg))
		return nil, fmt.Errorf("%s %v: %w", op, arg, err)
	}
	return rect, nil
}

func (r *rectificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Rectification, error) {
	return r.findOne(ctx, "find rectification by ID", "id = $1", id)
}

func (r *rectificationRepository) FindOpenByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Rectification, error) {
	return r.findOne(ctx, "find open rectification for booking", "booking_id = $1 AND status <> 'resolved'", bookingID)
}

func (r *rectificationRepository) queryMany(ctx context.Context, query string, args ...any) ([]*entity.Rectification, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query rectifications", zap.Error(err))
		return nil, fmt.Errorf("query rectifications: %w", err)
	}
	defer rows.Close()

	var rects []*entity.Rectification
	for rows.Next() {
		rect, err := scanRectification(rows)
		if err != nil {
			r.log.Error("Failed to scan rectification row", zap.Error(err))
			return nil, fmt.Errorf("scan rectification row: %w", err)
		}
		rects = append(rects, rect)
	}
	return rects, rows.Err()
}

func (r *rectificationRepository) ListByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Rectification, error) {
	return r.queryMany(ctx,
		`SELECT `+rectificationColumns+` FROM rectifications WHERE booking_id = $1 ORDER BY created_at`,
		bookingID)
}

func (r *rectificationRepository) List(ctx context.Context, status entity.RectificationStatus, limit, offset int) ([]*entity.Rectification, error) {
	if status == "" {
		return r.queryMany(ctx,
			`SELECT `+rectificationColumns+` FROM rectifications ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	return r.queryMany(ctx,
		`SELECT `+rectificationColumns+` FROM rectifications WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
}

func (r *rectificationRepository) Count(ctx context.Context, status entity.RectificationStatus) (int64, error) {
	var (
		count int64
		err   error
	)
	if status == "" {
		err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM rectifications`).Scan(&count)
	} else {
		err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM rectifications WHERE status = $1`, status).Scan(&count)
	}
	if err != nil {
		r.log.Error("Failed to count rectifications", zap.Error(err))
		return 0, fmt.Errorf("count rectifications: %w", err)
	}
	return count, nil
}

func (r *rectificationRepository) Update(ctx context.Context, rect *entity.Rectification, expectedVersion int64) error {
	query := `
		UPDATE rectifications
		SET status = $3, version = version + 1, provider_response = $4, fix_date = $5, fix_notes = $6,
		    fix_photos = $7, escalation_reason = $8, ruling = $9, refund_amount = $10, ruled_by = $11,
		    ruling_notes = $12, resolved_at = $13, updated_at = $14
		WHERE id = $1 AND version = $2
		RETURNING version
	`

	var version int64
	err := r.db.QueryRow(ctx, query,
		rect.ID,
		expectedVersion,
		rect.Status,
		rect.ProviderResponse,
		rect.FixDate,
		rect.FixNotes,
		nonNil(rect.FixPhotos),
		rect.EscalationReason,
		rulingArg(rect.Ruling),
		rect.RefundAmount,
		rect.RuledBy,
		rect.RulingNotes,
		rect.ResolvedAt,
		rect.UpdatedAt,
	).Scan(&version)

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict("update rectification", "rectification %s is no longer at version %d", rect.ID, expectedVersion)
	}
	if err != nil {
		r.log.Error("Failed to update rectification",
			zap.Error(err),
			zap.String("rectification_id", rect.ID.String()),
		)
		return fmt.Errorf("update rectification %s: %w", rect.ID.String(), err)
	}

	rect.Version = version
	return nil
}
