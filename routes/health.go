package routes

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"mediaforge/encoder"
	"mediaforge/logger"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
	GoVersion string          `json:"go_version"`
	Uptime    string          `json:"uptime"`
	StartTime string          `json:"start_time"`
	Backend   string          `json:"backend"`
	Tools     map[string]bool `json:"tools"`
	Database  string          `json:"database"`
}

// Global start time for uptime calculation
var startTime = time.Now()

// formatUptime formats a duration into days, hours, minutes, seconds
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// HealthHandler reports liveness. A missing codec tool or an unreadable
// record store degrades the status but still answers 200 so the process is
// not restarted for it.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   version,
		GoVersion: runtime.Version(),
		Uptime:    formatUptime(time.Since(startTime)),
		StartTime: startTime.Format("2006-01-02 15:04:05 MST"),
		Backend:   s.Config.Backend,
		Tools:     encoder.ToolStatus(),
		Database:  "ok",
	}

	for _, ok := range response.Tools {
		if !ok {
			response.Status = "degraded"
		}
	}
	if err := s.Successes.CheckHealth(); err != nil {
		logger.Warnf("Health check: %v", err)
		response.Database = err.Error()
		response.Status = "degraded"
	}

	logger.Debugf("Health check response: status=%s, version=%s", response.Status, response.Version)
	respondJSON(w, http.StatusOK, response)
}
