package response

import (
	"time"

	"service-engagement/internal/data/entity"
)

type EscrowResponse struct {
	ID           string              `json:"id"`
	BookingID    string              `json:"booking_id"`
	Amount       int64               `json:"amount"`
	Currency     string              `json:"currency"`
	Status       entity.EscrowStatus `json:"status"`
	Version      int64               `json:"version"`
	RefundAmount *int64              `json:"refund_amount,omitempty"`
	RefundReason *string             `json:"refund_reason,omitempty"`
	FreezeReason *string             `json:"freeze_reason,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	ReleasedAt   *time.Time          `json:"released_at,omitempty"`
	RefundedAt   *time.Time          `json:"refunded_at,omitempty"`
	FrozenAt     *time.Time          `json:"frozen_at,omitempty"`
}

func EscrowToResponse(h *entity.EscrowHold) EscrowResponse {
	return EscrowResponse{
		ID:           h.ID.String(),
		BookingID:    h.BookingID.String(),
		Amount:       h.Amount,
		Currency:     h.Currency,
		Status:       h.Status,
		Version:      h.Version,
		RefundAmount: h.RefundAmount,
		RefundReason: h.RefundReason,
		FreezeReason: h.FreezeReason,
		CreatedAt:    h.CreatedAt,
		ReleasedAt:   h.ReleasedAt,
		RefundedAt:   h.RefundedAt,
		FrozenAt:     h.FrozenAt,
	}
}
