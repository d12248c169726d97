package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediaforge/logger"
)

// FailureQueryHandler returns the failure record of one job
func (s *Server) FailureQueryHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	record, err := s.Failures.GetFailure(jobID)
	if err != nil {
		logger.Errorf("Failed to query failure for job %s: %v", jobID, err)
		respondDetail(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	if record == nil {
		respondDetail(w, http.StatusNotFound, "not_found", "no failure record for job "+jobID)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// FailureListHandler lists all failure records
func (s *Server) FailureListHandler(w http.ResponseWriter, r *http.Request) {
	failuresList, err := s.Failures.ListFailures()
	if err != nil {
		logger.Errorf("Failed to list failures: %v", err)
		respondDetail(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"failures": failuresList,
		"count":    len(failuresList),
	})
}
