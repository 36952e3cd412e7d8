package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/RAHUL-DevelopeRR/QP/internal/docgen"
	"github.com/RAHUL-DevelopeRR/QP/internal/extract"
	"github.com/RAHUL-DevelopeRR/QP/internal/generate"
	"github.com/RAHUL-DevelopeRR/QP/internal/llm"
	"github.com/RAHUL-DevelopeRR/QP/internal/session"
)

// ErrCode identifies an API error independently of its message.
type ErrCode string

const (
	// Access
	ErrAccessKeyRequired ErrCode = "ACCESS_KEY_REQUIRED"
	ErrAccessKeyInvalid  ErrCode = "ACCESS_KEY_INVALID"
	ErrCSRF              ErrCode = "CSRF_TOKEN_INVALID"

	// Input
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrMissingInput   ErrCode = "MISSING_INPUT"
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrUnknownSample  ErrCode = "UNKNOWN_SAMPLE"

	// State
	ErrGenerationBusy ErrCode = "GENERATION_IN_PROGRESS"
	ErrNoResults      ErrCode = "NO_RESULTS"

	// Collaborators
	ErrServiceFailed ErrCode = "GENERATION_SERVICE_ERROR"
	ErrBadReply      ErrCode = "GENERATION_FORMAT_ERROR"
	ErrTimeout       ErrCode = "TIMEOUT"
	ErrExportFailed  ErrCode = "EXPORT_FAILED"

	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns the human-readable message for a code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrAccessKeyRequired:
		return "An access key is required."
	case ErrAccessKeyInvalid:
		return "The access key is not valid."
	case ErrCSRF:
		return "The form has expired. Reload the page and try again."
	case ErrInvalidPayload:
		return "The request body is not valid JSON."
	case ErrMissingInput:
		return "Required inputs are missing."
	case ErrValidation:
		return "The inputs are not valid."
	case ErrUnknownSample:
		return "No example subject has that course code."
	case ErrGenerationBusy:
		return "A generation is already running for this session."
	case ErrNoResults:
		return "Generate a question bank and paper first."
	case ErrServiceFailed:
		return "The generation service could not be reached or refused the request."
	case ErrBadReply:
		return "Generation failed because the reply could not be read. Please retry."
	case ErrTimeout:
		return "The request timed out. Please try again."
	case ErrExportFailed:
		return "The document service could not render the paper."
	default:
		return "An unexpected error occurred."
	}
}

// ErrorBody is the payload of every API error.
type ErrorBody struct {
	Code    ErrCode  `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

// classify maps an error to a status, a code and optional details.
func classify(err error) (int, ErrCode, []string) {
	var missing *generate.MissingInputError
	var schema *extract.SchemaError
	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest, ErrMissingInput, missing.Fields
	case errors.Is(err, generate.ErrInvalidInput) && errors.As(err, &schema):
		return http.StatusBadRequest, ErrValidation, schema.Errors
	case errors.Is(err, generate.ErrInvalidInput):
		return http.StatusBadRequest, ErrValidation, []string{err.Error()}
	case errors.Is(err, session.ErrGenerating):
		return http.StatusConflict, ErrGenerationBusy, nil
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrTimeout, nil
	case errors.Is(err, llm.ErrService):
		return http.StatusBadGateway, ErrServiceFailed, nil
	case errors.Is(err, extract.ErrDataFormat):
		return http.StatusBadGateway, ErrBadReply, nil
	case errors.Is(err, docgen.ErrExport):
		return http.StatusBadGateway, ErrExportFailed, []string{err.Error()}
	default:
		return http.StatusInternalServerError, ErrInternal, nil
	}
}

// userMessage is the banner text shown for a failed UI action.
func userMessage(err error) string {
	_, code, details := classify(err)
	msg := GetMessage(code)
	if code == ErrMissingInput || code == ErrValidation {
		msg += " " + strings.Join(details, ", ")
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code ErrCode, details ...string) {
	writeJSON(w, status, errorResponse{Error: ErrorBody{Code: code, Message: GetMessage(code), Details: details}})
}

// writeErr classifies err and writes it. Server-side failures are logged.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code, details := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "code", code, "error", err)
	}
	writeError(w, status, code, details...)
}
