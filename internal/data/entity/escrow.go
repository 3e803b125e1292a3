package entity

import (
	"time"

	"github.com/google/uuid"
)

type EscrowStatus string

const (
	EscrowStatusHeld              EscrowStatus = "held"
	EscrowStatusReleased          EscrowStatus = "released"
	EscrowStatusFrozen            EscrowStatus = "frozen"
	EscrowStatusRefunded          EscrowStatus = "refunded"
	EscrowStatusPartiallyRefunded EscrowStatus = "partially_refunded"
)

var EscrowStatuses = []EscrowStatus{
	EscrowStatusHeld,
	EscrowStatusReleased,
	EscrowStatusFrozen,
	EscrowStatusRefunded,
	EscrowStatusPartiallyRefunded,
}

func (s EscrowStatus) Terminal() bool {
	return s == EscrowStatusReleased || s == EscrowStatusRefunded || s == EscrowStatusPartiallyRefunded
}

type EscrowCommand string

const (
	EscrowCmdRelease       EscrowCommand = "release"
	EscrowCmdFreeze        EscrowCommand = "freeze"
	EscrowCmdRefund        EscrowCommand = "refund"
	EscrowCmdPartialRefund EscrowCommand = "partial_refund"
)

var EscrowCommands = []EscrowCommand{
	EscrowCmdRelease,
	EscrowCmdFreeze,
	EscrowCmdRefund,
	EscrowCmdPartialRefund,
}

type EscrowHold struct {
	Base
	BookingID    uuid.UUID    `db:"booking_id"`
	Amount       int64        `db:"amount"`
	Currency     string       `db:"currency"`
	Status       EscrowStatus `db:"status"`
	Version      int64        `db:"version"`
	RefundAmount *int64       `db:"refund_amount"`
	RefundReason *string      `db:"refund_reason"`
	FreezeReason *string      `db:"freeze_reason"`
	ReleasedAt   *time.Time   `db:"released_at"`
	RefundedAt   *time.Time   `db:"refunded_at"`
	FrozenAt     *time.Time   `db:"frozen_at"`
}

func (h *EscrowHold) Clone() *EscrowHold {
	if h == nil {
		return nil
	}
	c := *h
	if h.RefundAmount != nil {
		v := *h.RefundAmount
		c.RefundAmount = &v
	}
	if h.RefundReason != nil {
		v := *h.RefundReason
		c.RefundReason = &v
	}
	if h.FreezeReason != nil {
		v := *h.FreezeReason
		c.FreezeReason = &v
	}
	c.ReleasedAt = cloneTime(h.ReleasedAt)
	c.RefundedAt = cloneTime(h.RefundedAt)
	c.FrozenAt = cloneTime(h.FrozenAt)
	return &c
}
