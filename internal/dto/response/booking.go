package response

import (
	"time"

	"service-engagement/internal/data/entity"
)

type BookingResponse struct {
	ID              string               `json:"id"`
	CategoryTag     string               `json:"category_tag"`
	ClientID        string               `json:"client_id"`
	ProviderID      string               `json:"provider_id"`
	AgreedAmount    int64                `json:"agreed_amount"`
	Currency        string               `json:"currency"`
	Status          entity.BookingStatus `json:"status"`
	StatusVersion   int64                `json:"status_version"`
	OTPVerified     bool                 `json:"otp_verified"`
	CheckInLocation *entity.GeoPoint     `json:"check_in_location,omitempty"`
	CompletionNotes string               `json:"completion_notes,omitempty"`
	BeforeMedia     []string             `json:"before_media,omitempty"`
	AfterMedia      []string             `json:"after_media,omitempty"`
	CancelReason    *string              `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	ConfirmedAt     *time.Time           `json:"confirmed_at,omitempty"`
	CheckedInAt     *time.Time           `json:"checked_in_at,omitempty"`
	CheckedOutAt    *time.Time           `json:"checked_out_at,omitempty"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
	SettledAt       *time.Time           `json:"settled_at,omitempty"`
}

// BookingCreatedResponse is returned once, to the creating client. The
// check-in code is never readable again.
type BookingCreatedResponse struct {
	BookingResponse
	CheckInCode string          `json:"check_in_code"`
	Escrow      *EscrowResponse `json:"escrow,omitempty"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID.String(),
		CategoryTag:     b.CategoryTag,
		ClientID:        b.ClientID.String(),
		ProviderID:      b.ProviderID.String(),
		AgreedAmount:    b.AgreedAmount,
		Currency:        b.Currency,
		Status:          b.Status,
		StatusVersion:   b.StatusVersion,
		OTPVerified:     b.OTPVerified,
		CheckInLocation: b.CheckInLocation(),
		CompletionNotes: b.CompletionNotes,
		BeforeMedia:     b.BeforeMedia,
		AfterMedia:      b.AfterMedia,
		CancelReason:    b.CancelReason,
		CreatedAt:       b.CreatedAt,
		ConfirmedAt:     b.ConfirmedAt,
		CheckedInAt:     b.CheckedInAt,
		CheckedOutAt:    b.CheckedOutAt,
		CompletedAt:     b.CompletedAt,
		CancelledAt:     b.CancelledAt,
		SettledAt:       b.SettledAt,
	}
}
