package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusAwaitingPayment = "awaiting_payment"
	JobStatusRunning         = "running"
	JobStatusCompleted       = "completed"
	JobStatusFailed          = "failed"
)

// Actions the gateway knows how to charge for. Everything else is either a
// free follow-up operation against an already-paid project, or rejected.
const (
	ActionCreateProject = "create_project"
	ActionInteract      = "interact"
	ActionAnalyze       = "analyze"
)

// Job tracks one payment-gated unit of work. The API returns a job_id on the
// gated endpoints; the client pays the associated payment instrument and polls
// GET /status until status is completed or failed.
type Job struct {
	ID            uuid.UUID       `db:"id"             json:"id"`
	Status        string          `db:"status"         json:"status"`
	PaymentStatus string          `db:"payment_status" json:"payment_status"`
	PaymentID     string          `db:"payment_id"     json:"payment_id"`
	Action        string          `db:"action"         json:"action"`
	Payload       json.RawMessage `db:"payload"        json:"payload"`
	Result        json.RawMessage `db:"result"         json:"result,omitempty"`
	ErrorMessage  *string         `db:"error_message"  json:"error_message,omitempty"`
	RequesterID   string          `db:"requester_id"   json:"requester_id"`
	ResourceKey   string          `db:"resource_key"   json:"resource_key,omitempty"`
	CreatedAt     time.Time       `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"     json:"updated_at"`
}

// Terminal reports whether the job has reached an absorbing state. Terminal
// jobs are immutable; late settlement notifications must not touch them.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// ValidAction reports whether action is one of the payable actions.
func ValidAction(action string) bool {
	switch action {
	case ActionCreateProject, ActionInteract, ActionAnalyze:
		return true
	}
	return false
}
