package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"service-engagement/internal/data/entity"
	"service-engagement/pkg/apperr"
	"service-engagement/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	List(ctx context.Context, filter entity.BookingFilter, limit, offset int) ([]*entity.Booking, error)
	Count(ctx context.Context, filter entity.BookingFilter) (int64, error)

	// Update persists booking if its stored status_version still equals
	// expectedVersion, and bumps booking.StatusVersion on success.
	Update(ctx context.Context, booking *entity.Booking, expectedVersion int64) error
}

const bookingColumns = `id, category_tag, client_id, provider_id, agreed_amount, currency, status, status_version,
		check_in_code_hash, otp_verified, check_in_lat, check_in_lng, completion_notes, before_media, after_media,
		cancel_reason, confirmed_at, checked_in_at, checked_out_at, completed_at, cancelled_at, settled_at,
		created_at, updated_at`

type bookingRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewBookingRepository(db database.Querier, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.CategoryTag,
		&b.ClientID,
		&b.ProviderID,
		&b.AgreedAmount,
		&b.Currency,
		&b.Status,
		&b.StatusVersion,
		&b.CheckInCodeHash,
		&b.OTPVerified,
		&b.CheckInLat,
		&b.CheckInLng,
		&b.CompletionNotes,
		&b.BeforeMedia,
		&b.AfterMedia,
		&b.CancelReason,
		&b.ConfirmedAt,
		&b.CheckedInAt,
		&b.CheckedOutAt,
		&b.CompletedAt,
		&b.CancelledAt,
		&b.SettledAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.CategoryTag,
		booking.ClientID,
		booking.ProviderID,
		booking.AgreedAmount,
		booking.Currency,
		booking.Status,
		booking.StatusVersion,
		booking.CheckInCodeHash,
		booking.OTPVerified,
		booking.CheckInLat,
		booking.CheckInLng,
		booking.CompletionNotes,
		nonNil(booking.BeforeMedia),
		nonNil(booking.AfterMedia),
		booking.CancelReason,
		booking.ConfirmedAt,
		booking.CheckedInAt,
		booking.CheckedOutAt,
		booking.CompletedAt,
		booking.CancelledAt,
		booking.SettledAt,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("client_id", booking.ClientID.String()),
		)
		return mapWriteError(fmt.Sprintf("create booking %s", booking.ID), err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return booking, nil
}

func bookingWhere(filter entity.BookingFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.CategoryTag != "" {
		add("category_tag = $%d", filter.CategoryTag)
	}
	if filter.ClientID != uuid.Nil {
		add("client_id = $%d", filter.ClientID)
	}
	if filter.ProviderID != uuid.Nil {
		add("provider_id = $%d", filter.ProviderID)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *bookingRepository) List(ctx context.Context, filter entity.BookingFilter, limit, offset int) ([]*entity.Booking, error) {
	where, args := bookingWhere(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM bookings%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		bookingColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list bookings",
			zap.Error(err),
			zap.Any("filter", filter),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) Count(ctx context.Context, filter entity.BookingFilter) (int64, error) {
	where, args := bookingWhere(filter)

	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`+where, args...).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings", zap.Error(err), zap.Any("filter", filter))
		return 0, fmt.Errorf("count bookings: %w", err)
	}

	return count, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking, expectedVersion int64) error {
	query := `
		UPDATE bookings
		SET status = $3, status_version = status_version + 1, check_in_code_hash = $4, otp_verified = $5,
		    check_in_lat = $6, check_in_lng = $7, completion_notes = $8, before_media = $9, after_media = $10,
		    cancel_reason = $11, confirmed_at = $12, checked_in_at = $13, checked_out_at = $14,
		    completed_at = $15, cancelled_at = $16, settled_at = $17, updated_at = $18
		WHERE id = $1 AND status_version = $2
		RETURNING status_version
	`

	var version int64
	err := r.db.QueryRow(ctx, query,
		booking.ID,
		expectedVersion,
		booking.Status,
		booking.CheckInCodeHash,
		booking.OTPVerified,
		booking.CheckInLat,
		booking.CheckInLng,
		booking.CompletionNotes,
		nonNil(booking.BeforeMedia),
		nonNil(booking.AfterMedia),
		booking.CancelReason,
		booking.ConfirmedAt,
		booking.CheckedInAt,
		booking.CheckedOutAt,
		booking.CompletedAt,
		booking.CancelledAt,
		booking.SettledAt,
		booking.UpdatedAt,
	).Scan(&version)

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict("update booking", "booking %s is no longer at version %d", booking.ID, expectedVersion)
	}
	if err != nil {
		r.log.Error("Failed to update booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.Int64("expected_version", expectedVersion),
		)
		return fmt.Errorf("update booking %s: %w", booking.ID.String(), err)
	}

	booking.StatusVersion = version
	return nil
}
