package httpapi

import (
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Now: time.Now().UTC()})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	overall, deps := s.Health.Ready(r.Context())

	status := http.StatusOK
	statusText := "ok"
	if !overall {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}

	dtoDeps := make([]healthDependencyDTO, len(deps))
	for i, d := range deps {
		dtoDeps[i] = healthDependencyDTO{Name: d.Name, OK: d.OK, Detail: d.Detail}
	}

	writeJSON(w, status, readyResponse{Status: statusText, Dependencies: dtoDeps, Now: time.Now().UTC()})
}
