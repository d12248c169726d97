package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediaforge/logger"
)

// SuccessQueryHandler returns the success record of one job
func (s *Server) SuccessQueryHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	record, err := s.Successes.GetSuccess(jobID)
	if err != nil {
		logger.Errorf("Failed to query success for job %s: %v", jobID, err)
		respondDetail(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	if record == nil {
		respondDetail(w, http.StatusNotFound, "not_found", "no success record for job "+jobID)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// SuccessListHandler lists all success records
func (s *Server) SuccessListHandler(w http.ResponseWriter, r *http.Request) {
	records, err := s.Successes.ListSuccessRecords()
	if err != nil {
		logger.Errorf("Failed to list success records: %v", err)
		respondDetail(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": records,
		"count":   len(records),
	})
}
