package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avoss/meetscribe/internal/api/response"
	"github.com/avoss/meetscribe/internal/jobs"
	"github.com/avoss/meetscribe/internal/store"
)

// NewSummarizeHandler returns the handler for POST /summarize/{jobID}. The
// body is optional JSON selecting the LLM; the call blocks for the duration
// of summarization.
func NewSummarizeHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		var req struct {
			LLMModel string `json:"llm_model"`
		}
		// An absent or empty body means provider defaults.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		summary, err := svc.Summarize(r.Context(), jobID, req.LLMModel)
		if err != nil {
			var notCompleted *jobs.NotCompletedError
			switch {
			case errors.As(err, &notCompleted):
				response.Write(w, http.StatusConflict, map[string]string{
					"job_id":  jobID,
					"status":  notCompleted.Status,
					"message": "Cannot summarize incomplete job",
				})
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "Job ID not found")
			default:
				slog.Error("summarization failed", "job_id", jobID, "error", err)
				response.Error(w, http.StatusInternalServerError,
					fmt.Sprintf("Failed to generate summary: %v", err))
			}
			return
		}

		response.JSON(w, map[string]string{
			"job_id":  jobID,
			"status":  "summary_completed",
			"summary": summary,
		})
	}
}
