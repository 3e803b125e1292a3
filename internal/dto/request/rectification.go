package request

import "time"

type ReportRectificationRequest struct {
	Category    string   `json:"category" validate:"required,max=64"`
	Description string   `json:"description" validate:"required,max=2000"`
	PhotoRefs   []string `json:"photo_refs" validate:"omitempty,max=20,dive,required,max=256"`
}

type ProviderRespondRequest struct {
	ExpectedVersion *int64     `json:"expected_version" validate:"required,min=0"`
	Response        string     `json:"response" validate:"required,max=2000"`
	FixDate         *time.Time `json:"fix_date" validate:"required"`
}

type FixCompleteRequest struct {
	ExpectedVersion *int64   `json:"expected_version" validate:"required,min=0"`
	Notes           string   `json:"notes" validate:"max=2000"`
	Photos          []string `json:"photos" validate:"omitempty,max=20,dive,required,max=256"`
}

type EscalateRequest struct {
	ExpectedVersion *int64 `json:"expected_version" validate:"required,min=0"`
	Reason          string `json:"reason" validate:"required,max=1000"`
}

type AdminRuleRequest struct {
	ExpectedVersion *int64 `json:"expected_version" validate:"required,min=0"`
	Ruling          string `json:"ruling" validate:"required,oneof=upheld rejected partial"`
	RefundAmount    int64  `json:"refund_amount" validate:"min=0"`
	Notes           string `json:"notes" validate:"max=2000"`
}

type ListRectificationsRequest struct {
	PaginatedRequest
	Status string `json:"status" validate:"omitempty,oneof=reported fix_scheduled fix_complete escalated resolved"`
}
