package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jedilabs/paygate/internal/api/response"
	"github.com/jedilabs/paygate/internal/dispatch"
	"github.com/jedilabs/paygate/internal/engine"
)

// FreeOperator is the entitlement-gated synchronous side of the engine. Setup
// endpoints are free once the project's creation payment has settled.
type FreeOperator interface {
	FreeOperation(ctx context.Context, resourceKey, endpoint string, body any) (json.RawMessage, error)
}

type freeOpResult struct {
	Result json.RawMessage `json:"result"`
}

// NewSetupInfoHandler returns an http.HandlerFunc for POST /setup_info.
func NewSetupInfoHandler(svc FreeOperator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProjectID            string `json:"projectId"`
			Name                 string `json:"name"`
			Description          string `json:"description"`
			TechnicalDescription string `json:"technicalDescription"`
			ImageURL             string `json:"imageUrl"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.ProjectID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "projectId is required", nil)
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}

		result, err := svc.FreeOperation(r.Context(), req.ProjectID,
			fmt.Sprintf("/api/projects/%s/setup-info", req.ProjectID),
			map[string]any{
				"name":                 req.Name,
				"description":          req.Description,
				"technicalDescription": req.TechnicalDescription,
				"imageUrl":             req.ImageURL,
			})
		if err != nil {
			freeOpError(w, err)
			return
		}

		response.JSON(w, freeOpResult{Result: result})
	}
}

// NewSetupSocialsHandler returns an http.HandlerFunc for POST /setup_socials.
func NewSetupSocialsHandler(svc FreeOperator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProjectID   string          `json:"projectId"`
			Twitter     string          `json:"twitter"`
			LinkedIn    string          `json:"linkedin"`
			Telegram    string          `json:"telegram"`
			AutoPost    bool            `json:"autoPost"`
			Character   json.RawMessage `json:"character"`
			PostsPerDay string          `json:"postsPerDay"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.ProjectID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "projectId is required", nil)
			return
		}

		postsPerDay := req.PostsPerDay
		if postsPerDay == "" {
			postsPerDay = "3"
		}

		result, err := svc.FreeOperation(r.Context(), req.ProjectID,
			fmt.Sprintf("/api/projects/%s/setup-socials", req.ProjectID),
			map[string]any{
				"twitter":     req.Twitter,
				"linkedin":    req.LinkedIn,
				"telegram":    req.Telegram,
				"autoPost":    req.AutoPost,
				"character":   req.Character,
				"postsPerDay": postsPerDay,
			})
		if err != nil {
			freeOpError(w, err)
			return
		}

		response.JSON(w, freeOpResult{Result: result})
	}
}

// NewSetupKarmaHandler returns an http.HandlerFunc for POST /setup_karma.
func NewSetupKarmaHandler(svc FreeOperator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProjectID    string   `json:"projectId"`
			Title        string   `json:"title"`
			Description  string   `json:"description"`
			ImageURL     string   `json:"imageURL"`
			OwnerAddress string   `json:"ownerAddress"`
			OwnerPKey    string   `json:"ownerPkey"`
			Members      []string `json:"members"`
			MembersPKey  string   `json:"membersPKey"`
			UserEmail    string   `json:"userEmail"`
			UserName     string   `json:"userName"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.ProjectID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "projectId is required", nil)
			return
		}
		if req.Title == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "title is required", nil)
			return
		}
		if req.OwnerAddress == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "ownerAddress is required", nil)
			return
		}

		members := req.Members
		if members == nil {
			members = []string{}
		}

		result, err := svc.FreeOperation(r.Context(), req.ProjectID,
			fmt.Sprintf("/api/projects/%s/setup-karma", req.ProjectID),
			map[string]any{
				"title":        req.Title,
				"description":  req.Description,
				"imageURL":     req.ImageURL,
				"ownerAddress": req.OwnerAddress,
				"ownerPkey":    req.OwnerPKey,
				"members":      members,
				"membersPKey":  req.MembersPKey,
				"userEmail":    req.UserEmail,
				"userName":     req.UserName,
			})
		if err != nil {
			freeOpError(w, err)
			return
		}

		response.JSON(w, freeOpResult{Result: result})
	}
}

// NewSetupIPHandler returns an http.HandlerFunc for POST /setup_ip.
func NewSetupIPHandler(svc FreeOperator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProjectID          string `json:"projectId"`
			Title              string `json:"title"`
			Description        string `json:"description"`
			ImageURL           string `json:"imageURL"`
			RemixFee           string `json:"remixFee"`
			CommercialRevShare string `json:"commercialRevShare"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.ProjectID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "projectId is required", nil)
			return
		}
		if req.Title == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "title is required", nil)
			return
		}

		result, err := svc.FreeOperation(r.Context(), req.ProjectID,
			fmt.Sprintf("/api/projects/%s/setup-ip", req.ProjectID),
			map[string]any{
				"title":              req.Title,
				"description":        req.Description,
				"imageURL":           req.ImageURL,
				"remixFee":           req.RemixFee,
				"commercialRevShare": req.CommercialRevShare,
			})
		if err != nil {
			freeOpError(w, err)
			return
		}

		response.JSON(w, freeOpResult{Result: result})
	}
}

// freeOpError maps entitlement-gated call failures to HTTP responses. A
// downstream non-2xx keeps its original status code.
func freeOpError(w http.ResponseWriter, err error) {
	var statusErr *dispatch.StatusError
	switch {
	case errors.Is(err, engine.ErrPaymentRequired):
		response.Error(w, http.StatusPaymentRequired, "PAYMENT_REQUIRED",
			"Project creation payment required first", nil)
	case errors.Is(err, dispatch.ErrDispatchTimeout):
		response.Error(w, http.StatusGatewayTimeout, "EXECUTION_TIMEOUT",
			"The execution service took too long to respond", nil)
	case errors.As(err, &statusErr):
		response.Error(w, statusErr.Code, "EXECUTION_ERROR",
			"The execution service rejected the request", statusErr.Body)
	case errors.Is(err, dispatch.ErrDispatchFailed):
		response.Error(w, http.StatusBadGateway, "EXECUTION_ERROR",
			"Failed to reach the execution service", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
