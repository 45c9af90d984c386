// Package memory is an in-process, map-backed implementation of
// store.Store. It backs unit tests, local development without a
// configured DATABASE_URL, and the FallbackRuntime, whose own durability
// guarantee is no stronger than "survives until the process exits" anyway.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/clipforge/editpipeline/internal/clock"
	"github.com/clipforge/editpipeline/internal/ids"
	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/store"
)

// Store is a mutex-guarded in-memory store.Store implementation.
type Store struct {
	mu sync.Mutex

	clock clock.Clock

	jobs           map[string]job.Job
	idempotency    map[string]string // idempotency key -> job id
	iterations     map[string][]job.Iteration
	qaReports      map[string][]job.QAReport // job id -> reports, append order
	events         map[string][]job.Event
	safetyEvents   []job.SafetyEvent
	reviewActions  []job.ReviewAction
	cases          map[string]job.CaseRecord
	caseOrder      []string
	modelBundles   map[string]job.ModelBundle
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		clock:        clock.System{},
		jobs:         make(map[string]job.Job),
		idempotency:  make(map[string]string),
		iterations:   make(map[string][]job.Iteration),
		qaReports:    make(map[string][]job.QAReport),
		events:       make(map[string][]job.Event),
		cases:        make(map[string]job.CaseRecord),
		modelBundles: make(map[string]job.ModelBundle),
	}
}

// WithClock substitutes the clock used to stamp created_at/updated_at,
// for deterministic tests.
func (s *Store) WithClock(c clock.Clock) *Store {
	s.clock = c
	return s
}

func (s *Store) CreateJob(_ context.Context, j job.Job) (job.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.IdempotencyKey != "" {
		if existingID, ok := s.idempotency[j.IdempotencyKey]; ok {
			return s.jobs[existingID], false, nil
		}
	}

	now := s.clock.Now()
	if j.ID == "" {
		j.ID = ids.New()
	}
	j.CreatedAt = now
	j.UpdatedAt = now
	s.jobs[j.ID] = j
	if j.IdempotencyKey != "" {
		s.idempotency[j.IdempotencyKey] = j.ID
	}
	return j, true, nil
}

func (s *Store) GetJob(_ context.Context, id string) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return job.Job{}, store.ErrNotFound
	}
	return j, nil
}

func (s *Store) ListJobs(_ context.Context, limit int) ([]job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FindJobByIdempotencyKey(_ context.Context, key string) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.idempotency[key]
	if !ok {
		return job.Job{}, store.ErrNotFound
	}
	return s.jobs[id], nil
}

func (s *Store) ApplyPatch(_ context.Context, jobID string, patch store.JobPatch) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return job.Job{}, store.ErrNotFound
	}
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	if patch.OutputURI != nil {
		j.OutputURI = *patch.OutputURI
	}
	if patch.Capability != nil {
		j.Capability = *patch.Capability
	}
	if patch.ModelBundle != nil {
		j.ModelBundle = *patch.ModelBundle
	}
	if patch.RiskLevel != nil {
		j.RiskLevel = *patch.RiskLevel
	}
	if patch.ClearQAScore {
		j.LatestQAScore = nil
	} else if patch.LatestQAScore != nil {
		j.LatestQAScore = patch.LatestQAScore
	}
	if patch.CurrentIteration != nil {
		j.CurrentIteration = *patch.CurrentIteration
	}
	j.UpdatedAt = s.clock.Now()
	s.jobs[jobID] = j
	return j, nil
}

func (s *Store) SetJobStatus(_ context.Context, jobID string, to job.Status, enforce bool) (job.Job, error) {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return job.Job{}, store.ErrNotFound
	}
	from := j.Status
	if from == to {
		s.mu.Unlock()
		return j, nil
	}
	if enforce && !job.CanTransition(from, to) {
		s.mu.Unlock()
		return job.Job{}, store.ErrInvalidTransition(from, to)
	}
	j.Status = to
	j.UpdatedAt = s.clock.Now()
	s.jobs[jobID] = j
	s.mu.Unlock()

	_, _ = s.LogJobEvent(context.Background(), job.Event{
		JobID:   jobID,
		Stage:   "status_transition",
		Level:   job.LevelInfo,
		Message: "Status changed from " + string(from) + " to " + string(to),
		Payload: map[string]any{"from": string(from), "to": string(to)},
	})
	return j, nil
}

func (s *Store) ResetForRerun(ctx context.Context, jobID string) (job.Job, error) {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return job.Job{}, store.ErrNotFound
	}
	from := j.Status
	if !job.CanTransition(from, job.StatusQueued) {
		s.mu.Unlock()
		return job.Job{}, store.ErrInvalidTransition(from, job.StatusQueued)
	}
	j.Status = job.StatusQueued
	j.CurrentIteration = 0
	j.OutputURI = ""
	j.LatestQAScore = nil
	j.UpdatedAt = s.clock.Now()
	s.jobs[jobID] = j
	s.mu.Unlock()

	_, _ = s.LogJobEvent(ctx, job.Event{
		JobID:   jobID,
		Stage:   "status_transition",
		Level:   job.LevelInfo,
		Message: "Status changed from " + string(from) + " to " + string(job.StatusQueued),
		Payload: map[string]any{"from": string(from), "to": string(job.StatusQueued), "rerun": true},
	})
	return j, nil
}

func (s *Store) CreateIteration(_ context.Context, it job.Iteration) (job.Iteration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it.CreatedAt = s.clock.Now()
	s.iterations[it.JobID] = append(s.iterations[it.JobID], it)
	return it, nil
}

func (s *Store) ListIterations(_ context.Context, jobID string) ([]job.Iteration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]job.Iteration, len(s.iterations[jobID]))
	copy(out, s.iterations[jobID])
	return out, nil
}

func (s *Store) CreateQAReport(_ context.Context, report job.QAReport) (job.QAReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report.ID == "" {
		report.ID = ids.New()
	}
	report.CreatedAt = s.clock.Now()
	s.qaReports[report.JobID] = append(s.qaReports[report.JobID], report)
	return report, nil
}

func (s *Store) LatestQAReport(_ context.Context, jobID string) (job.QAReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reports := s.qaReports[jobID]
	if len(reports) == 0 {
		return job.QAReport{}, store.ErrNotFound
	}
	return reports[len(reports)-1], nil
}

func (s *Store) ListJobEvents(_ context.Context, jobID string, limit int) ([]job.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evts := s.events[jobID]
	if limit > 0 && len(evts) > limit {
		evts = evts[:limit]
	}
	out := make([]job.Event, len(evts))
	copy(out, evts)
	return out, nil
}

func (s *Store) LogJobEvent(_ context.Context, evt job.Event) (job.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if evt.ID == "" {
		evt.ID = ids.New()
	}
	evt.CreatedAt = s.clock.Now()
	s.events[evt.JobID] = append(s.events[evt.JobID], evt)
	return evt, nil
}

func (s *Store) LogSafetyEvent(_ context.Context, evt job.SafetyEvent) (job.SafetyEvent, error) {
	s.mu.Lock()
	if evt.ID == "" {
		evt.ID = ids.New()
	}
	evt.CreatedAt = s.clock.Now()
	s.safetyEvents = append(s.safetyEvents, evt)
	s.mu.Unlock()

	message := "Safety precheck passed"
	level := job.LevelInfo
	if evt.Blocked {
		message = "Safety precheck blocked request"
		level = job.LevelWarning
	}
	_, _ = s.LogJobEvent(context.Background(), job.Event{
		JobID:   evt.JobID,
		Stage:   "safety_precheck",
		Level:   level,
		Message: message,
		Payload: map[string]any{
			"blocked":          evt.Blocked,
			"rule_ids":         evt.RuleIDs,
			"reason":           evt.Reason,
			"risk_level":       evt.RiskLevel,
			"override_applied": evt.OverrideApplied,
		},
	})
	return evt, nil
}

func (s *Store) CreateReviewAction(_ context.Context, action job.ReviewAction) (job.ReviewAction, error) {
	s.mu.Lock()
	if action.ID == "" {
		action.ID = ids.New()
	}
	action.CreatedAt = s.clock.Now()
	s.reviewActions = append(s.reviewActions, action)
	s.mu.Unlock()

	_, _ = s.LogJobEvent(context.Background(), job.Event{
		JobID:   action.JobID,
		Stage:   "manual_review_decision",
		Level:   job.LevelInfo,
		Message: "Manual review decision: " + string(action.Decision),
		Payload: map[string]any{"reviewer": action.Reviewer, "reason": action.Reason},
	})
	return action, nil
}

func (s *Store) CreateCaseRecord(_ context.Context, record job.CaseRecord) (job.CaseRecord, error) {
	s.mu.Lock()
	if record.ID == "" {
		record.ID = ids.New()
	}
	record.CreatedAt = s.clock.Now()
	s.cases[record.ID] = record
	s.caseOrder = append(s.caseOrder, record.ID)
	s.mu.Unlock()

	_, _ = s.LogJobEvent(context.Background(), job.Event{
		JobID:   record.JobID,
		Stage:   "case_archived",
		Level:   job.LevelInfo,
		Message: "Case archived into knowledge base",
		Payload: map[string]any{"case_id": record.ID, "tags": record.Tags},
	})
	return record, nil
}

func (s *Store) GetCase(_ context.Context, id string) (job.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return job.CaseRecord{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) RecentCases(_ context.Context, limit int) ([]job.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]job.CaseRecord, 0, len(s.caseOrder))
	for i := len(s.caseOrder) - 1; i >= 0; i-- {
		out = append(out, s.cases[s.caseOrder[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListModelBundles(_ context.Context) ([]job.ModelBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]job.ModelBundle, 0, len(s.modelBundles))
	for _, b := range s.modelBundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out, nil
}

func (s *Store) SeedModelBundles(_ context.Context, bundles []job.ModelBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bundles {
		s.modelBundles[b.Name] = b
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
