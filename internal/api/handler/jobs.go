package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/consentscan/internal/api/response"
	"github.com/kiranshivaraju/consentscan/internal/gateway"
	"github.com/kiranshivaraju/consentscan/internal/status"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

// maxBodyBytes leaves room for the JSON framing around a maximal source.
const maxBodyBytes = gateway.MaxSourceBytes + 64<<10

const retryAfter = 5 * time.Second

// Submitter is the gateway contract the submit handler depends on.
type Submitter interface {
	Submit(ctx context.Context, req gateway.SubmitRequest) (*gateway.SubmitResult, error)
}

// StatusReader is the status contract the poll handler depends on.
type StatusReader interface {
	Get(ctx context.Context, id string) (*models.JobView, error)
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/jobs. timeout
// bounds the record write and enqueue; zero means none.
func NewSubmitHandler(svc Submitter, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.SubmitRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "INVALID_REQUEST", "Request body too large", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		result, err := svc.Submit(ctx, req)
		if err != nil {
			switch {
			case errors.Is(err, gateway.ErrValidation):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			case errors.Is(err, gateway.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
				response.Unavailable(w, "QUEUE_UNAVAILABLE",
					"The job could not be queued; retry later", retryAfter)
			default:
				slog.Error("submit failed", "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		w.Header().Set("Location", "/api/v1/jobs/"+result.JobID.String())
		response.Accepted(w, result)
	}
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewStatusHandler(svc StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Get(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			switch {
			case errors.Is(err, status.ErrInvalidID):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			case errors.Is(err, status.ErrNotFound):
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			default:
				slog.Error("status lookup failed", "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}
		response.JSON(w, view)
	}
}
