package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/editpipeline/internal/store"
)

func (s *Server) handleSearchCases(w http.ResponseWriter, r *http.Request) {
	var req caseSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TopK == 0 {
		req.TopK = 5
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, errValidation(err.Error()))
		return
	}

	matches, err := s.Knowledge.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		writeError(w, r, err)
		return
	}

	results := make([]caseSearchResult, len(matches))
	for i, m := range matches {
		results[i] = caseSearchResult{
			CaseID: m.CaseID, TaskSummary: m.TaskSummary, Tags: m.Tags,
			FailureReason: m.FailureReason, FixStrategy: m.FixStrategy, Score: m.Score,
		}
	}
	writeJSON(w, http.StatusOK, caseSearchResponse{Query: req.Query, Results: results})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	c, err := s.Store.GetCase(r.Context(), caseID)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, r, errNotFound("case not found"))
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, caseResponse{
		CaseID: c.ID, JobID: c.JobID, TaskSummary: c.TaskSummary, Tags: c.Tags,
		FailureReason: c.FailureReason, FixStrategy: c.FixStrategy,
		FinalMetrics: c.FinalMetrics, CreatedAt: c.CreatedAt,
	})
}
