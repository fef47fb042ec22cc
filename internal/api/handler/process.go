package handler

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/avoss/meetscribe/internal/api/response"
	"github.com/avoss/meetscribe/internal/pipeline"
)

// maxUploadBytes caps the in-memory portion of multipart parsing; larger
// uploads spill to disk.
const maxUploadBytes = 32 << 20

var allowedExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
}

// NewProcessHandler returns the handler for POST /process. It validates the
// upload synchronously and dispatches processing in the background; the
// response carries only the job ID.
func NewProcessHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			response.Error(w, http.StatusBadRequest, "No audio_file part in the request")
			return
		}

		file, header, err := r.FormFile("audio_file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "No audio_file part in the request")
			return
		}
		defer file.Close()

		if header.Filename == "" || header.Size == 0 {
			response.Error(w, http.StatusBadRequest, "No selected file")
			return
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedExtensions[ext] {
			response.Error(w, http.StatusBadRequest, "File type not allowed")
			return
		}

		opts := pipeline.Options{
			ModelSize: r.FormValue("model_size"),
			Language:  r.FormValue("language"),
		}

		jobID, err := svc.Submit(r.Context(), file, header.Filename, opts)
		if err != nil {
			slog.Error("submit failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to start processing")
			return
		}

		slog.Info("audio upload accepted",
			"job_id", jobID,
			"user_id", formValueOr(r, "user_id", "anonymous"),
			"project_id", formValueOr(r, "project_id", "none"),
		)

		response.Accepted(w, map[string]string{
			"status":  "processing_started",
			"job_id":  jobID,
			"message": "Audio upload successful. Processing started.",
		})
	}
}

func formValueOr(r *http.Request, key, fallback string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return fallback
}
