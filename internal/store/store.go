// Package store defines the persistence contract for Jobs and their audit
// records (Iterations, QAReports, SafetyEvents, ReviewActions, JobEvents,
// CaseRecords, ModelBundles). Two implementations exist: store/memory, an
// in-process map-backed Store used by tests, local development, and the
// FallbackRuntime, and store/postgres, the relational store backing
// production deployments.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipforge/editpipeline/internal/job"
)

// ErrNotFound is returned by lookups that find no matching row. Callers
// translate it to errkit.ErrNotFound at the boundary that needs the kind
// taxonomy; store itself stays independent of errkit to avoid an import
// cycle with packages errkit itself does not need.
var ErrNotFound = errors.New("store: not found")

// TransitionError reports an illegal status transition attempted through
// SetJobStatus or ResetForRerun with enforcement on. Callers translate it
// to errkit.ErrInvalidState at the HTTP/orchestrator boundary.
type TransitionError struct {
	From, To job.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("store: invalid status transition from %q to %q", e.From, e.To)
}

// ErrInvalidTransition constructs a TransitionError for the given edge.
func ErrInvalidTransition(from, to job.Status) error {
	return &TransitionError{From: from, To: to}
}

// JobPatch carries a partial update to a Job row. Only non-nil fields are
// applied; this lets callers update a handful of columns (e.g. just
// Capability and ModelBundle at creation time) without clobbering the rest
// of the row in a read-modify-write race.
type JobPatch struct {
	Status           *job.Status
	OutputURI        *string
	Capability       *job.Capability
	ModelBundle      *string
	RiskLevel        *job.RiskLevel
	LatestQAScore    *float64
	ClearQAScore     bool
	CurrentIteration *int
}

// Store is the full persistence contract consumed by the orchestrator
// service and the HTTP API. All methods are safe for concurrent use.
type Store interface {
	// CreateJob inserts a new Job row. If req.IdempotencyKey is non-empty and
	// already used by an existing Job, CreateJob returns that Job unchanged
	// with created=false instead of inserting a second row.
	CreateJob(ctx context.Context, j job.Job) (result job.Job, created bool, err error)
	GetJob(ctx context.Context, id string) (job.Job, error)
	ListJobs(ctx context.Context, limit int) ([]job.Job, error)
	FindJobByIdempotencyKey(ctx context.Context, key string) (job.Job, error)

	// ApplyPatch updates the named fields on a Job row and bumps updated_at.
	// It does not check transition legality; callers that need the state
	// machine enforced go through SetJobStatus instead.
	ApplyPatch(ctx context.Context, jobID string, patch JobPatch) (job.Job, error)

	// SetJobStatus transitions a Job to a new status. When enforce is true
	// (the default for all but recovery writes), an illegal transition per
	// job.AllowedTransitions returns a *TransitionError and leaves the row
	// untouched. A successful transition also appends a status_transition
	// JobEvent.
	SetJobStatus(ctx context.Context, jobID string, to job.Status, enforce bool) (job.Job, error)

	// ResetForRerun clears iteration/output/QA state and transitions the Job
	// back to queued, for the human_review/failed -> queued rerun edge.
	ResetForRerun(ctx context.Context, jobID string) (job.Job, error)

	CreateIteration(ctx context.Context, it job.Iteration) (job.Iteration, error)
	ListIterations(ctx context.Context, jobID string) ([]job.Iteration, error)

	CreateQAReport(ctx context.Context, report job.QAReport) (job.QAReport, error)
	LatestQAReport(ctx context.Context, jobID string) (job.QAReport, error)

	ListJobEvents(ctx context.Context, jobID string, limit int) ([]job.Event, error)
	LogJobEvent(ctx context.Context, evt job.Event) (job.Event, error)

	LogSafetyEvent(ctx context.Context, evt job.SafetyEvent) (job.SafetyEvent, error)

	CreateReviewAction(ctx context.Context, action job.ReviewAction) (job.ReviewAction, error)

	CreateCaseRecord(ctx context.Context, record job.CaseRecord) (job.CaseRecord, error)
	GetCase(ctx context.Context, id string) (job.CaseRecord, error)
	RecentCases(ctx context.Context, limit int) ([]job.CaseRecord, error)

	ListModelBundles(ctx context.Context) ([]job.ModelBundle, error)
	SeedModelBundles(ctx context.Context, bundles []job.ModelBundle) error

	// Ping reports whether the underlying store is reachable, for readiness
	// checks.
	Ping(ctx context.Context) error
}
