package response

import (
	"time"

	"service-engagement/internal/data/entity"
)

type RectificationResponse struct {
	ID               string                     `json:"id"`
	BookingID        string                     `json:"booking_id"`
	ReporterID       string                     `json:"reporter_id"`
	Category         string                     `json:"category"`
	Description      string                     `json:"description"`
	PhotoRefs        []string                   `json:"photo_refs,omitempty"`
	Status           entity.RectificationStatus `json:"status"`
	Version          int64                      `json:"version"`
	ProviderResponse *string                    `json:"provider_response,omitempty"`
	FixDate          *time.Time                 `json:"fix_date,omitempty"`
	FixNotes         *string                    `json:"fix_notes,omitempty"`
	FixPhotos        []string                   `json:"fix_photos,omitempty"`
	EscalationReason *string                    `json:"escalation_reason,omitempty"`
	Ruling           *entity.Ruling             `json:"ruling,omitempty"`
	RefundAmount     *int64                     `json:"refund_amount,omitempty"`
	RuledBy          *string                    `json:"ruled_by,omitempty"`
	RulingNotes      *string                    `json:"ruling_notes,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	ResolvedAt       *time.Time                 `json:"resolved_at,omitempty"`
}

func RectificationToResponse(r *entity.Rectification) RectificationResponse {
	resp := RectificationResponse{
		ID:               r.ID.String(),
		BookingID:        r.BookingID.String(),
		ReporterID:       r.ReporterID.String(),
		Category:         r.Category,
		Description:      r.Description,
		PhotoRefs:        r.PhotoRefs,
		Status:           r.Status,
		Version:          r.Version,
		ProviderResponse: r.ProviderResponse,
		FixDate:          r.FixDate,
		FixNotes:         r.FixNotes,
		FixPhotos:        r.FixPhotos,
		EscalationReason: r.EscalationReason,
		Ruling:           r.Ruling,
		RefundAmount:     r.RefundAmount,
		RulingNotes:      r.RulingNotes,
		CreatedAt:        r.CreatedAt,
		ResolvedAt:       r.ResolvedAt,
	}
	if r.RuledBy != nil {
		s := r.RuledBy.String()
		resp.RuledBy = &s
	}
	return resp
}
