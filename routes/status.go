package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediaforge/logger"
)

// JobStatusHandler reports a running job's state, or the persisted outcome
// of a finished one.
func (s *Server) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	logger.Debugf("Checking status for job: %s", jobID)

	if s.Tracker != nil {
		if st, ok := s.Tracker.Get(jobID); ok {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"jobId":  jobID,
				"state":  st.State,
				"source": "tracker",
				"status": st,
			})
			return
		}
	}

	if rec, err := s.Successes.GetSuccess(jobID); err != nil {
		logger.Errorf("Failed to query success for job %s: %v", jobID, err)
	} else if rec != nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"jobId":  jobID,
			"state":  "completed",
			"source": "record",
			"record": rec,
		})
		return
	}

	if rec, err := s.Failures.GetFailure(jobID); err != nil {
		logger.Errorf("Failed to query failure for job %s: %v", jobID, err)
	} else if rec != nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"jobId":  jobID,
			"state":  "failed",
			"source": "record",
			"record": rec,
		})
		return
	}

	respondDetail(w, http.StatusNotFound, "not_found", "job "+jobID+" not found")
}
