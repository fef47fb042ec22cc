package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avoss/meetscribe/internal/api/response"
	"github.com/avoss/meetscribe/internal/jobs"
	"github.com/avoss/meetscribe/internal/store"
)

// NewResultsHandler returns the handler for GET /results/{jobID}. A job
// that has not completed yields a conflict echoing its current status.
func NewResultsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		rec, err := svc.Results(r.Context(), jobID)
		if err != nil {
			var notCompleted *jobs.NotCompletedError
			switch {
			case errors.As(err, &notCompleted):
				response.Write(w, http.StatusConflict, map[string]string{
					"job_id":  jobID,
					"status":  notCompleted.Status,
					"message": "Job is not completed yet",
				})
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "Job ID not found")
			default:
				slog.Error("results lookup failed", "job_id", jobID, "error", err)
				response.Error(w, http.StatusNotFound, "Results not found")
			}
			return
		}

		response.JSON(w, rec)
	}
}
