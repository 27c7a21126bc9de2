package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jedilabs/paygate/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. It is the single source of truth for
// job status; the lifecycle engine's at-most-once dispatch guarantee rests on
// MarkJobRunning being an atomic compare-and-swap.
type Store interface {
	Ping(ctx context.Context) error

	// CreateJob inserts a new job. Returns ErrDuplicateKey if the ID exists.
	CreateJob(ctx context.Context, job *models.Job) error
	// GetJob returns ErrNotFound for unknown IDs.
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// ListJobsByStatus returns all jobs currently in the given status. Used at
	// startup to resume settlement monitoring for awaiting_payment jobs.
	ListJobsByStatus(ctx context.Context, status string) ([]*models.Job, error)
	// MarkJobRunning atomically claims an awaiting_payment job for dispatch.
	// Returns false when the job is already running or terminal, which makes
	// duplicate settlement notifications no-ops.
	MarkJobRunning(ctx context.Context, id uuid.UUID) (bool, error)
	// CompleteJob moves a running job to completed with its result.
	CompleteJob(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	// FailJob moves a running job to failed with the error recorded.
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) error
	// UpdateJobPaymentStatus refreshes the mirrored payment status on a
	// non-terminal job. Terminal jobs are left untouched.
	UpdateJobPaymentStatus(ctx context.Context, id uuid.UUID, status string) error

	// SetEntitlement records that resourceKey has satisfied its payment gate.
	// Idempotent.
	SetEntitlement(ctx context.Context, resourceKey string) error
	HasEntitlement(ctx context.Context, resourceKey string) (bool, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}
