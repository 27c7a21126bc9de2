package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment network statuses we treat as settled. The network reports
// FundsLocked once the purchaser's funds are escrowed, and Completed once the
// result has been submitted and the escrow released.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusLocked    = "FundsLocked"
	PaymentStatusCompleted = "Completed"
	PaymentStatusError     = "error"
)

// SettledPaymentStatus reports whether a payment network status means the
// purchaser has paid and dispatch may proceed.
func SettledPaymentStatus(status string) bool {
	return status == PaymentStatusLocked || status == PaymentStatusCompleted
}

// Amount is one requested amount in the payment network's smallest unit.
type Amount struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

// PaymentInstrument is the payment network's representation of a pending
// charge for one job. A job owns at most one active instrument; the
// association is released when the job reaches a terminal state.
type PaymentInstrument struct {
	PaymentID                 string    `json:"payment_id"`
	JobID                     uuid.UUID `json:"job_id"`
	Amounts                   []Amount  `json:"amounts"`
	InputHash                 string    `json:"input_hash"`
	SubmitResultTime          time.Time `json:"submit_result_time"`
	UnlockTime                time.Time `json:"unlock_time"`
	ExternalDisputeUnlockTime time.Time `json:"external_dispute_unlock_time"`
	AgentIdentifier           string    `json:"agent_identifier"`
	SellerVKey                string    `json:"seller_vkey"`
}
