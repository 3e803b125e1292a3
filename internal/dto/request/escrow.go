package request

type CreateHoldRequest struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Currency string `json:"currency" validate:"required,iso4217"`
}

type FreezeRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// RefundRequest: Amount is required for a partial refund and ignored for a
// full one.
type RefundRequest struct {
	Amount  int64  `json:"amount" validate:"min=0"`
	Reason  string `json:"reason" validate:"required,max=500"`
	Partial bool   `json:"partial"`
}
