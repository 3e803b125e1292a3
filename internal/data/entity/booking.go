package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusCreated           BookingStatus = "created"
	BookingStatusProviderConfirmed BookingStatus = "provider_confirmed"
	BookingStatusCheckedIn         BookingStatus = "checked_in"
	BookingStatusCheckedOut        BookingStatus = "checked_out"
	BookingStatusCompleted         BookingStatus = "completed"
	BookingStatusObservation       BookingStatus = "observation"
	BookingStatusDisputed          BookingStatus = "disputed"
	BookingStatusSettled           BookingStatus = "settled"
	BookingStatusCancelled         BookingStatus = "cancelled"
)

var BookingStatuses = []BookingStatus{
	BookingStatusCreated,
	BookingStatusProviderConfirmed,
	BookingStatusCheckedIn,
	BookingStatusCheckedOut,
	BookingStatusCompleted,
	BookingStatusObservation,
	BookingStatusDisputed,
	BookingStatusSettled,
	BookingStatusCancelled,
}

func (s BookingStatus) Valid() bool {
	for _, v := range BookingStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusSettled || s == BookingStatusCancelled
}

type BookingCommand string

const (
	BookingCmdProviderConfirm   BookingCommand = "provider_confirm"
	BookingCmdCheckIn           BookingCommand = "check_in"
	BookingCmdCheckOut          BookingCommand = "check_out"
	BookingCmdReportCompletion  BookingCommand = "report_completion"
	BookingCmdObservationExpiry BookingCommand = "observation_expiry"
	BookingCmdOpenRectification BookingCommand = "open_rectification"
	BookingCmdFixComplete       BookingCommand = "fix_complete"
	BookingCmdResolveDispute    BookingCommand = "resolve_dispute"
	BookingCmdCancel            BookingCommand = "cancel"
)

var BookingCommands = []BookingCommand{
	BookingCmdProviderConfirm,
	BookingCmdCheckIn,
	BookingCmdCheckOut,
	BookingCmdReportCompletion,
	BookingCmdObservationExpiry,
	BookingCmdOpenRectification,
	BookingCmdFixComplete,
	BookingCmdResolveDispute,
	BookingCmdCancel,
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Booking struct {
	Base
	CategoryTag     string        `db:"category_tag"`
	ClientID        uuid.UUID     `db:"client_id"`
	ProviderID      uuid.UUID     `db:"provider_id"`
	AgreedAmount    int64         `db:"agreed_amount"`
	Currency        string        `db:"currency"`
	Status          BookingStatus `db:"status"`
	StatusVersion   int64         `db:"status_version"`
	CheckInCodeHash string        `db:"check_in_code_hash"`
	OTPVerified     bool          `db:"otp_verified"`
	CheckInLat      *float64      `db:"check_in_lat"`
	CheckInLng      *float64      `db:"check_in_lng"`
	CompletionNotes string        `db:"completion_notes"`
	BeforeMedia     []string      `db:"before_media"`
	AfterMedia      []string      `db:"after_media"`
	CancelReason    *string       `db:"cancel_reason"`
	ConfirmedAt     *time.Time    `db:"confirmed_at"`
	CheckedInAt     *time.Time    `db:"checked_in_at"`
	CheckedOutAt    *time.Time    `db:"checked_out_at"`
	CompletedAt     *time.Time    `db:"completed_at"`
	CancelledAt     *time.Time    `db:"cancelled_at"`
	SettledAt       *time.Time    `db:"settled_at"`
}

func (b *Booking) CheckInLocation() *GeoPoint {
	if b.CheckInLat == nil || b.CheckInLng == nil {
		return nil
	}
	return &GeoPoint{Lat: *b.CheckInLat, Lng: *b.CheckInLng}
}

// IsParty reports whether the actor is the booking's client or provider.
func (b *Booking) IsParty(a Actor) bool {
	return a.ID == b.ClientID || a.ID == b.ProviderID
}

func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.BeforeMedia = cloneStrings(b.BeforeMedia)
	c.AfterMedia = cloneStrings(b.AfterMedia)
	if b.CheckInLat != nil {
		v := *b.CheckInLat
		c.CheckInLat = &v
	}
	if b.CheckInLng != nil {
		v := *b.CheckInLng
		c.CheckInLng = &v
	}
	if b.CancelReason != nil {
		v := *b.CancelReason
		c.CancelReason = &v
	}
	c.ConfirmedAt = cloneTime(b.ConfirmedAt)
	c.CheckedInAt = cloneTime(b.CheckedInAt)
	c.CheckedOutAt = cloneTime(b.CheckedOutAt)
	c.CompletedAt = cloneTime(b.CompletedAt)
	c.CancelledAt = cloneTime(b.CancelledAt)
	c.SettledAt = cloneTime(b.SettledAt)
	return &c
}

// BookingFilter narrows List queries. Zero values mean "any".
type BookingFilter struct {
	Status      BookingStatus
	CategoryTag string
	ClientID    uuid.UUID
	ProviderID  uuid.UUID
}
