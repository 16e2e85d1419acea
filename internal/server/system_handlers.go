package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var startedAt = time.Now()

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if err := s.container.DB.HealthCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Database health check failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int(time.Since(startedAt).Seconds()),
	})
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"uptime_seconds": int(time.Since(startedAt).Seconds()),
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		info["cpu_percent"] = percentages[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info["memory_percent"] = vm.UsedPercent
		info["memory_used_mb"] = vm.Used / 1024 / 1024
	}

	respondJSON(w, http.StatusOK, info)
}
