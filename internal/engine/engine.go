// Package engine owns the payment-gated job state machine: it creates gated
// jobs, waits for settlement, dispatches the work exactly once, and records
// the outcome.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jedilabs/paygate/internal/cache"
	"github.com/jedilabs/paygate/internal/config"
	"github.com/jedilabs/paygate/internal/dispatch"
	"github.com/jedilabs/paygate/internal/payment"
	"github.com/jedilabs/paygate/internal/store"
	"github.com/jedilabs/paygate/pkg/models"
)

// Sentinel errors surfaced to the API layer.
var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrPaymentRequired = errors.New("payment required")
)

// Entitlements are never revoked; the TTL only bounds cache memory.
const entitlementCacheTTL = 24 * time.Hour

// Monitor is the part of the payment monitor the engine drives. The engine
// holds the only reference to each instrument's watch and releases it exactly
// once, at the job's terminal transition.
type Monitor interface {
	Start(paymentID string, onSettled payment.SettlementHandler)
	Stop(paymentID string)
}

// DispatchPayload describes the downstream call a gated job performs once its
// payment settles. Stored verbatim on the job at creation time.
type DispatchPayload struct {
	Endpoint string          `json:"endpoint"`
	Method   string          `json:"method"`
	Data     json.RawMessage `json:"data"`
}

// CreateGatedJobParams holds validated input for a new gated job.
type CreateGatedJobParams struct {
	Action      string
	Payload     DispatchPayload
	RequesterID string
	ResourceKey string
}

// GatedJobReceipt is everything the purchaser needs to actually pay.
type GatedJobReceipt struct {
	JobID                     uuid.UUID       `json:"job_id"`
	PaymentID                 string          `json:"blockchainIdentifier"`
	SubmitResultTime          time.Time       `json:"submitResultTime"`
	UnlockTime                time.Time       `json:"unlockTime"`
	ExternalDisputeUnlockTime time.Time       `json:"externalDisputeUnlockTime"`
	AgentIdentifier           string          `json:"agentIdentifier"`
	SellerVKey                string          `json:"sellerVkey"`
	RequesterID               string          `json:"identifierFromPurchaser"`
	Amounts                   []models.Amount `json:"amounts"`
	InputHash                 string          `json:"input_hash"`
}

// JobView is the status-query projection of a job.
type JobView struct {
	JobID         uuid.UUID       `json:"job_id"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Action        string          `json:"action"`
	Result        json.RawMessage `json:"result"`
}

// Engine orchestrates the gated job lifecycle. All job mutations after
// creation happen through the store's compare-and-swap operations, so
// concurrent settlement callbacks and status queries never race a job into
// an invalid state.
type Engine struct {
	store      store.Store
	payments   payment.Client
	monitor    Monitor
	dispatcher dispatch.Client
	cache      cache.Cache
	pricing    config.PricingConfig
}

// New creates a lifecycle engine.
func New(st store.Store, payments payment.Client, mon Monitor, dispatcher dispatch.Client, ca cache.Cache, pricing config.PricingConfig) *Engine {
	return &Engine{
		store:      st,
		payments:   payments,
		monitor:    mon,
		dispatcher: dispatcher,
		cache:      ca,
		pricing:    pricing,
	}
}

// CreateGatedJob prices the action, opens a payment instrument, records the
// job as awaiting_payment, and starts settlement monitoring. It never blocks
// on settlement. If instrument creation fails no job is left behind.
func (e *Engine) CreateGatedJob(ctx context.Context, params CreateGatedJobParams) (*GatedJobReceipt, error) {
	fee, ok := e.pricing.AmountFor(params.Action)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, params.Action)
	}
	amounts := []models.Amount{{Amount: strconv.FormatInt(fee, 10), Unit: e.pricing.Unit}}

	payloadJSON, err := json.Marshal(params.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	inputHash := payment.Fingerprint(params.Action, payloadJSON)

	jobID := uuid.New()
	instrument, err := e.payments.CreateInstrument(ctx, payment.CreateInstrumentRequest{
		JobID:       jobID,
		RequesterID: params.RequesterID,
		Amounts:     amounts,
		InputHash:   inputHash,
	})
	if err != nil {
		return nil, fmt.Errorf("creating payment instrument: %w", err)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:            jobID,
		Status:        models.JobStatusAwaitingPayment,
		PaymentStatus: models.PaymentStatusPending,
		PaymentID:     instrument.PaymentID,
		Action:        params.Action,
		Payload:       payloadJSON,
		RequesterID:   params.RequesterID,
		ResourceKey:   params.ResourceKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	slog.Info("gated job created",
		"job_id", jobID, "action", params.Action, "payment_id", instrument.PaymentID,
		"fee", fee, "unit", e.pricing.Unit)

	e.monitor.Start(instrument.PaymentID, e.settlementHandler(jobID))

	return &GatedJobReceipt{
		JobID:                     jobID,
		PaymentID:                 instrument.PaymentID,
		SubmitResultTime:          instrument.SubmitResultTime,
		UnlockTime:                instrument.UnlockTime,
		ExternalDisputeUnlockTime: instrument.ExternalDisputeUnlockTime,
		AgentIdentifier:           instrument.AgentIdentifier,
		SellerVKey:                instrument.SellerVKey,
		RequesterID:               params.RequesterID,
		Amounts:                   amounts,
		InputHash:                 inputHash,
	}, nil
}

// ResumeMonitoring restarts settlement watches for jobs that were awaiting
// payment when the process last stopped. Returns the number of watches
// restarted.
func (e *Engine) ResumeMonitoring(ctx context.Context) (int, error) {
	jobs, err := e.store.ListJobsByStatus(ctx, models.JobStatusAwaitingPayment)
	if err != nil {
		return 0, fmt.Errorf("listing awaiting jobs: %w", err)
	}

	resumed := 0
	for _, job := range jobs {
		if job.PaymentID == "" {
			continue
		}
		e.monitor.Start(job.PaymentID, e.settlementHandler(job.ID))
		resumed++
	}
	if resumed > 0 {
		slog.Info("resumed settlement monitoring", "jobs", resumed)
	}
	return resumed, nil
}

// settlementHandler binds a job ID into the handler the monitor will invoke
// at most once per instrument.
func (e *Engine) settlementHandler(jobID uuid.UUID) payment.SettlementHandler {
	return func(paymentID string) {
		e.HandleSettlement(context.Background(), jobID, paymentID)
	}
}

// HandleSettlement runs the settled side of the state machine: claim the job,
// dispatch the work, record the outcome, release monitoring. Every exit path
// leaves the job terminal or untouched; a job never stays in running after
// this returns.
func (e *Engine) HandleSettlement(ctx context.Context, jobID uuid.UUID, paymentID string) {
	defer e.monitor.Stop(paymentID)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in settlement handler", "job_id", jobID, "panic", r)
			e.failJob(ctx, jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	claimed, err := e.store.MarkJobRunning(ctx, jobID)
	if err != nil {
		slog.Error("claiming job for dispatch failed", "job_id", jobID, "error", err)
		return
	}
	if !claimed {
		// Duplicate or stale settlement notification against a job that is
		// already running or terminal.
		slog.Info("ignoring settlement for non-claimable job", "job_id", jobID, "payment_id", paymentID)
		return
	}

	slog.Info("payment settled, dispatching", "job_id", jobID, "payment_id", paymentID)

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		e.failJob(ctx, jobID, fmt.Sprintf("loading job after claim: %v", err))
		return
	}

	var payload DispatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		e.failJob(ctx, jobID, fmt.Sprintf("decoding stored payload: %v", err))
		return
	}

	result, err := e.dispatcher.Call(ctx, payload.Endpoint, payload.Method, payload.Data)
	if err != nil {
		slog.Error("dispatch failed", "job_id", jobID, "endpoint", payload.Endpoint, "error", err)
		e.failJob(ctx, jobID, err.Error())
		return
	}

	if err := e.payments.CompleteInstrument(ctx, paymentID, result); err != nil {
		slog.Error("completing payment instrument failed", "job_id", jobID, "payment_id", paymentID, "error", err)
		e.failJob(ctx, jobID, fmt.Sprintf("completing payment: %v", err))
		return
	}

	if err := e.store.CompleteJob(ctx, jobID, result); err != nil {
		slog.Error("recording job completion failed", "job_id", jobID, "error", err)
		e.failJob(ctx, jobID, fmt.Sprintf("recording completion: %v", err))
		return
	}

	if job.Action == models.ActionCreateProject && job.ResourceKey != "" {
		if err := e.store.SetEntitlement(ctx, job.ResourceKey); err != nil {
			slog.Error("recording entitlement failed", "job_id", jobID, "resource_key", job.ResourceKey, "error", err)
		} else {
			_ = e.cache.SetEntitlement(ctx, job.ResourceKey, entitlementCacheTTL)
			slog.Info("project marked as paid", "resource_key", job.ResourceKey)
		}
	}

	slog.Info("job completed", "job_id", jobID, "action", job.Action)
}

func (e *Engine) failJob(ctx context.Context, jobID uuid.UUID, msg string) {
	if err := e.store.FailJob(ctx, jobID, msg); err != nil {
		slog.Error("recording job failure failed", "job_id", jobID, "error", err)
	}
}

// QueryStatus returns the current view of a job. Non-terminal jobs get a
// best-effort payment status refresh; a poll failure degrades payment_status
// to an error marker without failing the query. Terminal jobs are returned
// as stored and never regressed.
func (e *Engine) QueryStatus(ctx context.Context, jobID uuid.UUID) (*JobView, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	paymentStatus := job.PaymentStatus
	if !job.Terminal() && job.PaymentID != "" {
		status, err := e.payments.CheckStatus(ctx, job.PaymentID)
		if err != nil {
			slog.Warn("payment status refresh failed", "job_id", jobID, "error", err)
			paymentStatus = models.PaymentStatusError
		} else {
			paymentStatus = status
			_ = e.store.UpdateJobPaymentStatus(ctx, jobID, status)
		}
	}

	return &JobView{
		JobID:         job.ID,
		Status:        job.Status,
		PaymentStatus: paymentStatus,
		Action:        job.Action,
		Result:        job.Result,
	}, nil
}

// RequireEntitlement gates free operations: it returns ErrPaymentRequired
// unless resourceKey has a recorded paid entitlement. Positive results are
// cached; entitlements are never revoked so the cache cannot go stale.
func (e *Engine) RequireEntitlement(ctx context.Context, resourceKey string) error {
	if cached, err := e.cache.HasEntitlement(ctx, resourceKey); err == nil && cached {
		return nil
	}

	ok, err := e.store.HasEntitlement(ctx, resourceKey)
	if err != nil {
		return fmt.Errorf("checking entitlement: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: project %s has no paid entitlement", ErrPaymentRequired, resourceKey)
	}

	_ = e.cache.SetEntitlement(ctx, resourceKey, entitlementCacheTTL)
	return nil
}

// FreeOperation performs a gate check and then delegates synchronously to the
// execution service, with no job or payment wrapping.
func (e *Engine) FreeOperation(ctx context.Context, resourceKey, endpoint string, body any) (json.RawMessage, error) {
	if err := e.RequireEntitlement(ctx, resourceKey); err != nil {
		return nil, err
	}
	return e.dispatcher.Call(ctx, endpoint, "POST", body)
}
