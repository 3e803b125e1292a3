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

type EscrowRepository interface {
	// CreateIfAbsent inserts hold unless one already exists for its booking,
	// and returns the stored hold either way. created reports which.
	CreateIfAbsent(ctx context.Context, hold *entity.EscrowHold) (stored *entity.EscrowHold, created bool, err error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.EscrowHold, error)
	Update(ctx context.Context, hold *entity.EscrowHold, expectedVersion int64) error
}

const escrowColumns = `id, booking_id, amount, currency, status, version, refund_amount, refund_reason,
		freeze_reason, released_at, refunded_at, frozen_at, created_at, updated_at`

type escrowRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewEscrowRepository(db database.Querier, log *zap.Logger) EscrowRepository {
	return &escrowRepository{
		db:  db,
		log: log.With(zap.String("repository", "escrow")),
	}
}

func scanEscrow(row pgx.Row) (*entity.EscrowHold, error) {
	var h entity.EscrowHold
	err := row.Scan(
		&h.ID,
		&h.BookingID,
		&h.Amount,
		&h.Currency,
		&h.Status,
		&h.Version,
		&h.RefundAmount,
		&h.RefundReason,
		&h.FreezeReason,
		&h.ReleasedAt,
		&h.RefundedAt,
		&h.FrozenAt,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *escrowRepository) CreateIfAbsent(ctx context.Context, hold *entity.EscrowHold) (*entity.EscrowHold, bool, error) {
	query := `
		INSERT INTO escrow_holds (id, booking_id, amount, currency, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (booking_id) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query,
		hold.ID,
		hold.BookingID,
		hold.Amount,
		hold.Currency,
		hold.Status,
		hold.Version,
		hold.CreatedAt,
		hold.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create escrow hold",
			zap.Error(err),
			zap.String("booking_id", hold.BookingID.String()),
		)
		return nil, false, mapWriteError(fmt.Sprintf("create escrow hold for booking %s", hold.BookingID), err)
	}

	created := tag.RowsAffected() == 1
	stored, err := r.FindByBookingID(ctx, hold.BookingID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("escrow hold for booking %s vanished after insert", hold.BookingID)
	}
	return stored, created, nil
}

func (r *escrowRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.EscrowHold, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_holds WHERE booking_id = $1`

	hold, err := scanEscrow(r.db.QueryRow(ctx, query, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find escrow hold",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find escrow hold for booking %s: %w", bookingID.String(), err)
	}
	return hold, nil
}

func (r *escrowRepository) Update(ctx context.Context, hold *entity.EscrowHold, expectedVersion int64) error {
	query := `
		UPDATE escrow_holds
		SET status = $3, version = version + 1, refund_amount = $4, refund_reason = $5, freeze_reason = $6,
		    released_at = $7, refunded_at = $8, frozen_at = $9, updated_at = $10
		WHERE id = $1 AND version = $2
		RETURNING version
	`

	var version int64
	err := r.db.QueryRow(ctx, query,
		hold.ID,
		expectedVersion,
		hold.Status,
		hold.RefundAmount,
		hold.RefundReason,
		hold.FreezeReason,
		hold.ReleasedAt,
		hold.RefundedAt,
		hold.FrozenAt,
		hold.UpdatedAt,
	).Scan(&version)

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict("update escrow hold", "hold %s is no longer at version %d", hold.ID, expectedVersion)
	}
	if err != nil {
		r.log.Error("Failed to update escrow hold",
			zap.Error(err),
			zap.String("hold_id", hold.ID.String()),
		)
		return fmt.Errorf("update escrow hold %s: %w", hold.ID.String(), err)
	}

	hold.Version = version
	return nil
}
