package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avoss/meetscribe/internal/api/response"
	"github.com/avoss/meetscribe/internal/store"
)

// NewStatusHandler returns the handler for GET /status/{jobID}. The status
// record is returned verbatim.
func NewStatusHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		rec, err := svc.Status(r.Context(), jobID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "Job ID not found")
			return
		}
		if err != nil {
			slog.Error("status lookup failed", "job_id", jobID, "error", err)
			response.Error(w, http.StatusNotFound, "Job ID not found")
			return
		}

		response.JSON(w, rec)
	}
}
