package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jedilabs/paygate/internal/api/response"
	"github.com/jedilabs/paygate/internal/engine"
	"github.com/jedilabs/paygate/internal/store"
)

// StatusQueryer is the status-query side of the engine.
type StatusQueryer interface {
	QueryStatus(ctx context.Context, jobID uuid.UUID) (*engine.JobView, error)
}

// NewStatusHandler returns an http.HandlerFunc for GET /status?job_id=.
func NewStatusHandler(svc StatusQueryer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawID := r.URL.Query().Get("job_id")
		if rawID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_id is required", nil)
			return
		}
		jobID, err := uuid.Parse(rawID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_id must be a valid UUID", nil)
			return
		}

		view, err := svc.QueryStatus(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, view)
	}
}
