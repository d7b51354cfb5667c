package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"pharmacore/internal/assistant"
	"pharmacore/internal/blob"
	"pharmacore/internal/core"
	"pharmacore/internal/export"
	"pharmacore/pkg/domain"
)

const maxBodyBytes = 1 << 20

// inconsistencyWarning accompanies failed sale and purchase writes: the
// transaction record may be stored while the inventory snapshot is not.
const inconsistencyWarning = "the transaction may have been saved without its stock change; reload and verify inventory before retrying"

type errorBody struct {
	Error   string `json:"error"`
	Warning string `json:"warning,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body required", core.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return nil
}

func statusFor(err error) int {
	var notFound core.ErrNotFound
	switch {
	case errors.Is(err, core.ErrNotReady),
		errors.Is(err, domain.ErrStorageUnavailable),
		errors.Is(err, export.ErrStopped),
		errors.Is(err, assistant.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.As(err, &notFound),
		errors.Is(err, export.ErrJobNotFound),
		errors.Is(err, export.ErrNoArtifact),
		errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, export.ErrQueueFull),
		errors.Is(err, assistant.ErrBusy):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// fail maps err to a response. Internal errors are logged with op.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "operation", op, "status", status, "error", err)
	}
	respondError(w, status, err.Error())
}

// failTransaction is fail for sale and purchase writes.
func (h *Handler) failTransaction(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, domain.ErrWriteFailed) {
		h.fail(w, op, err)
		return
	}
	h.logger.Error("transaction write failed", "operation", op, "error", err)
	respondJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), Warning: inconsistencyWarning})
}
