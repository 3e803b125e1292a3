package request

type CreateBookingRequest struct {
	CategoryTag  string `json:"category_tag" validate:"required,max=64"`
	ProviderID   string `json:"provider_id" validate:"required,uuid"`
	AgreedAmount int64  `json:"agreed_amount" validate:"required,gt=0"`
	Currency     string `json:"currency" validate:"required,iso4217"`
}

// ListBookingsRequest filters the booking list. As narrows to bookings where
// the caller is the client or the provider; admins may leave it empty.
type ListBookingsRequest struct {
	PaginatedRequest
	Status      string `json:"status" validate:"omitempty,oneof=created provider_confirmed checked_in checked_out completed observation disputed settled cancelled"`
	CategoryTag string `json:"category_tag" validate:"omitempty,max=64"`
	As          string `json:"as" validate:"omitempty,oneof=client provider"`
}

// BookingCommandRequest is the generic status command. Dispute and timer
// commands are issued by the engine itself and are not accepted here.
type BookingCommandRequest struct {
	Command         string   `json:"command" validate:"required,oneof=provider_confirm check_in check_out report_completion cancel"`
	ExpectedVersion *int64   `json:"expected_version" validate:"required,min=0"`
	OTP             string   `json:"otp" validate:"omitempty,numeric,len=6"`
	Lat             *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng             *float64 `json:"lng" validate:"omitempty,longitude"`
	Notes           string   `json:"notes" validate:"max=2000"`
	Media           []string `json:"media" validate:"omitempty,max=20,dive,required,max=256"`
	Reason          string   `json:"reason" validate:"max=500"`
}

type VersionRequest struct {
	ExpectedVersion *int64 `json:"expected_version" validate:"required,min=0"`
}

type CheckInRequest struct {
	ExpectedVersion *int64   `json:"expected_version" validate:"required,min=0"`
	OTP             string   `json:"otp" validate:"required,numeric,len=6"`
	Lat             *float64 `json:"lat" validate:"required,latitude"`
	Lng             *float64 `json:"lng" validate:"required,longitude"`
}

// EvidenceRequest carries check-out and completion evidence.
type EvidenceRequest struct {
	ExpectedVersion *int64   `json:"expected_version" validate:"required,min=0"`
	Notes           string   `json:"notes" validate:"max=2000"`
	Media           []string `json:"media" validate:"omitempty,max=20,dive,required,max=256"`
}

type CancelBookingRequest struct {
	ExpectedVersion *int64 `json:"expected_version" validate:"required,min=0"`
	Reason          string `json:"reason" validate:"required,max=500"`
}
