package routes

import (
	"net/http"
	"time"

	"mediaforge/logger"
)

// manualPurgeAge is the age threshold of an on-demand purge.
const manualPurgeAge = time.Hour

func (s *Server) CleanupStatusHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Retention.Snapshot())
}

func (s *Server) CleanupRunHandler(w http.ResponseWriter, r *http.Request) {
	res := s.Retention.PurgeOldFiles(manualPurgeAge)
	logger.Infof("Manual cleanup removed %d files", res.DeletedCount)
	respondJSON(w, http.StatusOK, res)
}
