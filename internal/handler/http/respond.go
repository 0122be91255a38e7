package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"shrimp/internal/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the body of endpoints with nothing else to return.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// IDResponse is the body of ingest endpoints.
type IDResponse struct {
	ID int64 `json:"id"`
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, message string, statusCode int) {
	writeJSON(w, log, ErrorResponse{Error: message}, statusCode)
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, msg string) {
	if v, ok := service.IsValidation(err); ok {
		writeError(w, log, v.Message, http.StatusBadRequest)
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, log, "Link not found", http.StatusNotFound)
	case errors.Is(err, service.ErrConflict):
		writeError(w, log, "Slug already in use", http.StatusConflict)
	case errors.Is(err, service.ErrAllocationExhausted):
		log.Error(msg, zap.Error(err))
		writeError(w, log, "Could not generate a unique slug, please try again", http.StatusInternalServerError)
	default:
		log.Error(msg, zap.Error(err))
		writeError(w, log, "Internal server error", http.StatusInternalServerError)
	}
}
