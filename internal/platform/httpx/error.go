// Package httpx holds the JSON error envelope every handler responds with.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/brewcoin/api/internal/platform/requestctx"
)

// Error is the payload for a failed request. Code is a stable machine-readable
// identifier; Message is safe to show to callers.
type Error struct {
	Code    string
	Message string
	Status  int
}

// NewError builds an Error, clamping the code and message to log-safe values.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clampLine(code, 80),
		Message: clampLine(message, 512),
		Status:  status,
	}
}

// WriteError renders the error envelope as JSON, attaching the request and
// trace identifiers from the context when present.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if requestID := clampLine(middleware.GetReqID(ctx), 80); requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID := clampLine(requestctx.TraceID(ctx), 64); traceID != "" {
		payload["trace_id"] = traceID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// clampLine collapses newlines and bounds the length so caller-supplied text
// cannot break the single-line log and JSON output.
func clampLine(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
