package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/editpipeline/internal/errkit"
	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/modelmanager"
	"github.com/clipforge/editpipeline/internal/orchestrator"
	"github.com/clipforge/editpipeline/internal/safety"
	"github.com/clipforge/editpipeline/internal/store"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, errValidation(err.Error()))
		return
	}

	metadata := job.Metadata{}
	for k, v := range req.Metadata {
		switch k {
		case job.MetaCallbackURL, job.MetaAdminOverride, job.MetaOverrideReason:
			continue // reserved keys are set only from the typed request fields below
		}
		metadata[k] = v
	}
	if err := s.validateMetadata(req.Metadata); err != nil {
		writeError(w, r, errValidation(err.Error()))
		return
	}
	if req.CallbackURL != "" {
		metadata[job.MetaCallbackURL] = req.CallbackURL
	}

	if req.SafetyOverride {
		if err := s.applyAdminOverride(r, req.OverrideReason, metadata); err != nil {
			writeError(w, r, err)
			return
		}
	}

	created, isNew, err := s.Orchestrator.CreateJob(r.Context(), orchestrator.CreateJobRequest{
		IdempotencyKey:   r.Header.Get("Idempotency-Key"),
		Instruction:      req.Instruction,
		InputURI:         req.InputURI,
		ForcedCapability: req.ForceCapability,
		MaxIterations:    s.Config.MaxIterations,
		Metadata:         metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	patch := store.JobPatch{}
	bundleSet, riskSet := false, false
	if created.ModelBundle == "" {
		bundle := modelmanager.DefaultModelBundle(s.Config.ModelRuntimeMode)
		patch.ModelBundle = &bundle
		bundleSet = true
	}
	if created.RiskLevel == "" {
		risk := safety.ClassifyRisk(req.Instruction, s.Config.HighRiskReviewKeywords)
		patch.RiskLevel = &risk
		riskSet = true
	}
	if bundleSet || riskSet {
		created, err = s.Store.ApplyPatch(r.Context(), created.ID, patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	if isNew {
		if err := s.Orchestrator.StartOrchestration(r.Context(), created.ID); err != nil {
			writeError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, toJobResponse(created))
}

// applyAdminOverride mirrors _apply_admin_override: safety_override requires
// a matching X-Admin-Token and a non-trivial override_reason, or the
// request is rejected before the Job is ever created.
func (s *Server) applyAdminOverride(r *http.Request, overrideReason string, metadata job.Metadata) error {
	configured := s.Config.SafetyAdminToken
	if configured == "" || r.Header.Get("X-Admin-Token") != configured {
		return errForbidden("admin token required for safety override")
	}
	if len(stripSpace(overrideReason)) < 6 {
		return errValidation("override_reason must be provided and at least 6 characters")
	}
	metadata[job.MetaAdminOverride] = true
	metadata[job.MetaOverrideReason] = stripSpace(overrideReason)
	return nil
}

func stripSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n') {
		end--
	}
	return s[start:end]
}

// validateMetadata rejects a metadata payload that doesn't parse as a JSON
// object, per the compiled schema. Reserved keys are not rejected here:
// handleCreateJob drops any caller-supplied callback_url, admin_override or
// override_reason and sets them only from the validated CallbackURL field
// and the admin-override check.
func (s *Server) validateMetadata(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}
	return s.metadataSchema.Validate(metadata)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(r.URL.Query().Get("limit"), 50, 1, 100)
	jobs, err := s.Store.ListJobs(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		items[i] = toJobResponse(j)
	}
	writeJSON(w, http.StatusOK, jobListResponse{Items: items})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.lookupJob(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j))
}

func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	j, err := s.lookupJob(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := clampLimit(r.URL.Query().Get("limit"), 200, 1, 1000)
	events, err := s.Store.ListJobEvents(r.Context(), j.ID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]jobEventResponse, len(events))
	for i, e := range events {
		out[i] = jobEventResponse{
			EventID: e.ID, JobID: e.JobID, Stage: e.Stage, Level: e.Level,
			Message: e.Message, Payload: e.Payload, CreatedAt: e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJobArtifacts(w http.ResponseWriter, r *http.Request) {
	j, err := s.lookupJob(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	iterations, err := s.Store.ListIterations(r.Context(), j.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	intermediate := make([]string, 0, len(iterations))
	output := make([]string, 0, len(iterations)+1)
	seenOutput := map[string]struct{}{}
	for _, it := range iterations {
		intermediate = append(intermediate, "minio://intermediate/"+j.ID+"/iter_"+strconv.Itoa(it.Iteration)+"/trace.json")
		if it.OutputURI != "" {
			if _, ok := seenOutput[it.OutputURI]; !ok {
				output = append(output, it.OutputURI)
				seenOutput[it.OutputURI] = struct{}{}
			}
		}
	}
	if j.OutputURI != "" {
		if _, ok := seenOutput[j.OutputURI]; !ok {
			output = append(output, j.OutputURI)
		}
	}

	writeJSON(w, http.StatusOK, artifactManifestResponse{
		JobID:        j.ID,
		Raw:          []string{j.InputURI},
		Intermediate: intermediate,
		Output:       output,
		Audit:        []string{"minio://audit/" + j.ID + "/events.json"},
		RetentionDays: map[string]int{
			"raw":          s.Config.RawRetentionDays,
			"intermediate": s.Config.IntermediateRetentionDays,
			"output":       s.Config.OutputRetentionDays,
			"audit":        3650,
		},
	})
}

func (s *Server) handleJobQAReport(w http.ResponseWriter, r *http.Request) {
	j, err := s.lookupJob(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.Store.LatestQAReport(r.Context(), j.ID)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, r, errNotFound("qa report not found"))
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qaReportResponse{
		JobID: j.ID, Iteration: report.Iteration, OverallScore: report.OverallScore,
		DimensionScores: report.DimensionScores, Issues: report.Issues,
		HardFailFlags: report.HardFailFlags, Recommendations: report.Recommendations,
		CreatedAt: report.CreatedAt,
	})
}

func (s *Server) lookupJob(r *http.Request) (job.Job, error) {
	jobID := chi.URLParam(r, "jobID")
	j, err := s.Store.GetJob(r.Context(), jobID)
	if err == store.ErrNotFound {
		return job.Job{}, errkit.New(errkit.ErrNotFound, "job not found")
	}
	return j, err
}

func clampLimit(raw string, def, min, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
