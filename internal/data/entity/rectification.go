package entity

import (
	"time"

	"github.com/google/uuid"
)

type RectificationStatus string

const (
	RectificationStatusReported     RectificationStatus = "reported"
	RectificationStatusFixScheduled RectificationStatus = "fix_scheduled"
	RectificationStatusFixComplete  RectificationStatus = "fix_complete"
	RectificationStatusEscalated    RectificationStatus = "escalated"
	RectificationStatusResolved     RectificationStatus = "resolved"
)

var RectificationStatuses = []RectificationStatus{
	RectificationStatusReported,
	RectificationStatusFixScheduled,
	RectificationStatusFixComplete,
	RectificationStatusEscalated,
	RectificationStatusResolved,
}

func (s RectificationStatus) Valid() bool {
	for _, v := range RectificationStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s RectificationStatus) Terminal() bool {
	return s == RectificationStatusResolved
}

type RectificationCommand string

const (
	RectificationCmdProviderRespond    RectificationCommand = "provider_respond"
	RectificationCmdConfirmFixComplete RectificationCommand = "confirm_fix_complete"
	RectificationCmdConfirmResolution  RectificationCommand = "confirm_resolution"
	RectificationCmdObservationExpiry  RectificationCommand = "observation_expiry"
	RectificationCmdEscalate           RectificationCommand = "escalate"
	RectificationCmdAdminRule          RectificationCommand = "admin_rule"
)

var RectificationCommands = []RectificationCommand{
	RectificationCmdProviderRespond,
	RectificationCmdConfirmFixComplete,
	RectificationCmdConfirmResolution,
	RectificationCmdObservationExpiry,
	RectificationCmdEscalate,
	RectificationCmdAdminRule,
}

type Ruling string

const (
	RulingUpheld   Ruling = "upheld"
	RulingRejected Ruling = "rejected"
	RulingPartial  Ruling = "partial"
)

type Rectification struct {
	Base
	BookingID        uuid.UUID           `db:"booking_id"`
	ReporterID       uuid.UUID           `db:"reporter_id"`
	Category         string              `db:"category"`
	Description      string              `db:"description"`
	PhotoRefs        []string            `db:"photo_refs"`
	Status           RectificationStatus `db:"status"`
	Version          int64               `db:"version"`
	ProviderResponse *string             `db:"provider_response"`
	FixDate          *time.Time          `db:"fix_date"`
	FixNotes         *string             `db:"fix_notes"`
	FixPhotos        []string            `db:"fix_photos"`
	EscalationReason *string             `db:"escalation_reason"`
	Ruling           *Ruling             `db:"ruling"`
	RefundAmount     *int64              `db:"refund_amount"`
	RuledBy          *uuid.UUID          `db:"ruled_by"`
	RulingNotes      *string             `db:"ruling_notes"`
	ResolvedAt       *time.Time          `db:"resolved_at"`
}

func (r *Rectification) Clone() *Rectification {
	if r == nil {
		return nil
	}
	c := *r
	c.PhotoRefs = cloneStrings(r.PhotoRefs)
	c.FixPhotos = cloneStrings(r.FixPhotos)
	c.FixDate = cloneTime(r.FixDate)
	c.ResolvedAt = cloneTime(r.ResolvedAt)
	if r.ProviderResponse != nil {
		v := *r.ProviderResponse
		c.ProviderResponse = &v
	}
	if r.FixNotes != nil {
		v := *r.FixNotes
		c.FixNotes = &v
	}
	if r.EscalationReason != nil {
		v := *r.EscalationReason
		c.EscalationReason = &v
	}
	if r.Ruling != nil {
		v := *r.Ruling
		c.Ruling = &v
	}
	if r.RefundAmount != nil {
		v := *r.RefundAmount
		c.RefundAmount = &v
	}
	if r.RuledBy != nil {
		v := *r.RuledBy
		c.RuledBy = &v
	}
	if r.RulingNotes != nil {
		v := *r.RulingNotes
		c.RulingNotes = &v
	}
	return &c
}
