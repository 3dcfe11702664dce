package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/storage"
)

const (
	msgInternal    = "Internal server error"
	msgBadBody     = "Invalid request body"
	msgNotFound    = "Not found"
	msgInvalidKind = "Invalid analytics type"
)

// errorResponse is the envelope for every 4xx and 5xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to encode response", log.FieldError, err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, errorResponse{Error: msg})
}

// writeServiceError maps a write-lane error onto the envelope: validation
// errors are 400, missing records 404 and anything else 500.
func writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(ctx, w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, storage.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, msgNotFound)
	default:
		log.LogError(ctx, "Request failed", err, log.ComponentHTTP, op, nil)
		writeError(ctx, w, http.StatusInternalServerError, msgInternal)
	}
}
