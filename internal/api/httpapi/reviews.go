package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleReviewDecision(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var req reviewDecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Reviewer == "" {
		req.Reviewer = "ops-reviewer"
	}
	if req.Reason == "" {
		req.Reason = "manual review action"
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, errValidation(err.Error()))
		return
	}

	updated, err := s.Orchestrator.HandleReviewDecision(r.Context(), jobID, req.Decision, req.Reviewer, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewDecisionResponse{
		JobID: jobID, Decision: req.Decision, ResultingStatus: updated.Status,
	})
}
