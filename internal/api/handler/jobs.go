// Package handler contains the HTTP handlers for the paygate API. Handlers
// validate input, delegate to the lifecycle engine, and map sentinel errors
// to HTTP responses; all orchestration lives in the engine.
package handler

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jedilabs/paygate/internal/api/response"
	"github.com/jedilabs/paygate/internal/engine"
	"github.com/jedilabs/paygate/internal/payment"
	"github.com/jedilabs/paygate/pkg/models"
	"github.com/jedilabs/paygate/pkg/resourcekey"
)

// GatedJobCreator is the part of the lifecycle engine the paid endpoints use.
type GatedJobCreator interface {
	CreateGatedJob(ctx context.Context, params engine.CreateGatedJobParams) (*engine.GatedJobReceipt, error)
}

// NewCreateProjectHandler returns an http.HandlerFunc for POST /create_project.
// Project creation is a paid action: the response is a payment receipt, and
// the downstream call runs only after settlement.
func NewCreateProjectHandler(svc GatedJobCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IdentifierFromPurchaser string `json:"identifier_from_purchaser"`
			RepoURL                 string `json:"repoUrl"`
			WalletAddress           string `json:"walletAddress"`
			Side                    string `json:"side"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.IdentifierFromPurchaser == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "identifier_from_purchaser is required", nil)
			return
		}
		if req.RepoURL == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "repoUrl is required", nil)
			return
		}
		if req.WalletAddress == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "walletAddress is required", nil)
			return
		}

		side := req.Side
		if side == "" {
			side = "light"
		}
		if side != "light" && side != "dark" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "side must be light or dark", nil)
			return
		}

		base, err := resourcekey.Derive("", req.RepoURL)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"repoUrl must contain a repository name", nil)
			return
		}
		projectID := fmt.Sprintf("%s-%d", base, uniqueSuffix())

		data, err := json.Marshal(map[string]any{
			"repoUrl":       req.RepoURL,
			"walletAddress": req.WalletAddress,
			"side":          side,
			"projectId":     projectID,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		receipt, err := svc.CreateGatedJob(r.Context(), engine.CreateGatedJobParams{
			Action: models.ActionCreateProject,
			Payload: engine.DispatchPayload{
				Endpoint: "/api/projects/create",
				Method:   http.MethodPost,
				Data:     data,
			},
			RequesterID: req.IdentifierFromPurchaser,
			ResourceKey: projectID,
		})
		if err != nil {
			gatedJobError(w, err)
			return
		}

		response.Accepted(w, receipt)
	}
}

// NewInteractHandler returns an http.HandlerFunc for POST /interact.
func NewInteractHandler(svc GatedJobCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IdentifierFromPurchaser string `json:"identifier_from_purchaser"`
			ProjectID               string `json:"projectId"`
			Prompt                  string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.IdentifierFromPurchaser == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "identifier_from_purchaser is required", nil)
			return
		}
		if req.ProjectID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "projectId is required", nil)
			return
		}
		if req.Prompt == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "prompt is required", nil)
			return
		}

		data, err := json.Marshal(map[string]any{"prompt": req.Prompt})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		receipt, err := svc.CreateGatedJob(r.Context(), engine.CreateGatedJobParams{
			Action: models.ActionInteract,
			Payload: engine.DispatchPayload{
				Endpoint: fmt.Sprintf("/api/projects/%s/interact", req.ProjectID),
				Method:   http.MethodPost,
				Data:     data,
			},
			RequesterID: req.IdentifierFromPurchaser,
		})
		if err != nil {
			gatedJobError(w, err)
			return
		}

		response.Accepted(w, receipt)
	}
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /analyze.
func NewAnalyzeHandler(svc GatedJobCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IdentifierFromPurchaser string `json:"identifier_from_purchaser"`
			RepoURL                 string `json:"repoUrl"`
			UserID                  string `json:"userId"`
			ProjectKey              string `json:"projectKey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.IdentifierFromPurchaser == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "identifier_from_purchaser is required", nil)
			return
		}
		if req.RepoURL == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "repoUrl is required", nil)
			return
		}
		if req.ProjectKey == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "projectKey is required", nil)
			return
		}

		userID := req.UserID
		if userID == "" {
			userID = "anonymous"
		}

		data, err := json.Marshal(map[string]any{
			"repoUrl":    req.RepoURL,
			"userId":     userID,
			"projectKey": req.ProjectKey,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		receipt, err := svc.CreateGatedJob(r.Context(), engine.CreateGatedJobParams{
			Action: models.ActionAnalyze,
			Payload: engine.DispatchPayload{
				Endpoint: "/api/github/analyze",
				Method:   http.MethodPost,
				Data:     data,
			},
			RequesterID: req.IdentifierFromPurchaser,
		})
		if err != nil {
			gatedJobError(w, err)
			return
		}

		response.Accepted(w, receipt)
	}
}

// uniqueSuffix disambiguates derived project IDs so repeated creations from
// the same repository URL get distinct entitlement keys.
func uniqueSuffix() uint32 {
	id := uuid.New()
	return binary.BigEndian.Uint32(id[:4])
}

// gatedJobError maps job-creation failures to HTTP responses.
func gatedJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownAction):
		response.Error(w, http.StatusBadRequest, "UNKNOWN_ACTION",
			"The requested action is not payable", nil)
	case errors.Is(err, payment.ErrPaymentTimeout):
		response.Error(w, http.StatusGatewayTimeout, "PAYMENT_NETWORK_TIMEOUT",
			"The payment network took too long to respond", nil)
	case errors.Is(err, payment.ErrPaymentUnreachable), errors.Is(err, payment.ErrPaymentRequestFailed):
		response.Error(w, http.StatusBadGateway, "PAYMENT_NETWORK_ERROR",
			"Failed to create a payment request", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
