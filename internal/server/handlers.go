package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "fairshares",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// SystemStatusResponse describes process and storage health
type SystemStatusResponse struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	DBSizeBytes    int64   `json:"db_size_bytes"`
	DBHealthy      bool    `json:"db_healthy"`
}

// handleSystemStatus reports process and database health
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	response := SystemStatusResponse{
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		response.CPUPercent = cpuPercent[0]
	} else if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read CPU usage")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		response.MemUsedPercent = memStat.UsedPercent
	} else {
		s.log.Warn().Err(err).Msg("Failed to read memory usage")
	}

	if stats, err := s.db.GetStats(); err == nil {
		response.DBSizeBytes = stats.SizeBytes
	} else {
		s.log.Warn().Err(err).Msg("Failed to read database stats")
	}
	response.DBHealthy = s.db.QuickCheck(r.Context()) == nil

	s.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
