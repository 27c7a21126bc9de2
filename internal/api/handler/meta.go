package handler

import (
	"net/http"

	"github.com/jedilabs/paygate/internal/api/response"
)

// NewAvailabilityHandler returns an http.HandlerFunc for GET /availability.
func NewAvailabilityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, map[string]any{
			"status":  "available",
			"type":    "payment-middleware",
			"message": "Payment middleware operational.",
		})
	}
}

// NewInputSchemaHandler returns an http.HandlerFunc for GET /input_schema,
// describing the payloads the paid endpoints accept.
func NewInputSchemaHandler() http.HandlerFunc {
	schemas := map[string]any{
		"create_project": map[string]string{
			"identifier_from_purchaser": "string",
			"repoUrl":                   "string",
			"walletAddress":             "string",
			"side":                      "string (light|dark)",
		},
		"interact": map[string]string{
			"identifier_from_purchaser": "string",
			"projectId":                 "string",
			"prompt":                    "string",
		},
		"analyze": map[string]string{
			"identifier_from_purchaser": "string",
			"repoUrl":                   "string",
			"userId":                    "string",
			"projectKey":                "string",
		},
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, schemas)
	}
}
