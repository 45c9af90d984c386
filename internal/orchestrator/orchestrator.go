// Package orchestrator implements the Job state machine: creation, the
// safety-gated plan/execute/QA iteration loop, routing to manual review or
// a terminal status, and the human reviewer's approve/reject/rerun
// decision. The iteration loop is written once as an engine.WorkflowFunc
// plus a fixed set of activities, and registered against both a durable
// Temporal-backed engine and an in-memory fallback engine so the same
// logic drives both execution paths.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/clipforge/editpipeline/internal/callback"
	"github.com/clipforge/editpipeline/internal/engine"
	"github.com/clipforge/editpipeline/internal/errkit"
	"github.com/clipforge/editpipeline/internal/executor"
	"github.com/clipforge/editpipeline/internal/fallbacklock"
	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/knowledge"
	"github.com/clipforge/editpipeline/internal/planner"
	"github.com/clipforge/editpipeline/internal/qa"
	"github.com/clipforge/editpipeline/internal/safety"
	"github.com/clipforge/editpipeline/internal/store"
	"github.com/clipforge/editpipeline/internal/telemetry"
)

// WorkflowName is the logical name the video-edit workflow is registered
// under on both the durable and fallback engines.
const WorkflowName = "VideoEditWorkflow"

// Activity names, registered once per engine in RegisterWith.
const (
	ActivitySafetyPrecheck     = "SafetyPrecheckActivity"
	ActivityPlanIteration      = "PlanIterationActivity"
	ActivityExecuteIteration   = "ExecuteIterationActivity"
	ActivityQAIteration        = "QAIterationActivity"
	ActivityFinalizeSucceeded  = "FinalizeSucceededActivity"
	ActivityFinalizeHumanReview = "FinalizeHumanReviewActivity"
	ActivityFinalizeBlocked    = "FinalizeBlockedActivity"
)

// Service wires the state machine's dependencies: persistence, the
// deterministic planner/QA fixtures, the EditExecutor, the knowledge base,
// and the callback dispatcher. It also holds the two engines the workflow
// can run on.
type Service struct {
	Store     store.Store
	Knowledge *knowledge.Store
	Executor  executor.EditExecutor
	Callback  *callback.Dispatcher

	Durable  engine.Engine // may be nil if Temporal is not configured
	Fallback engine.Engine // in-memory engine, always present

	// FallbackLock guards against the FallbackRuntime starting two runs
	// for the same Job (see package fallbacklock). May be nil.
	FallbackLock *fallbacklock.Locker

	DurableTaskQueue string

	MaxIterations            int
	QAThreshold              float64
	QARandomReviewRatio      float64
	DefaultModelBundle       string
	SafetyOverrideAllowRules []string
	HighRiskReviewKeywords   []string
	EnableFallbackOrchestrator bool

	Logger telemetry.Logger
}

// CreateJobRequest is the input to CreateJob, already validated at the API
// boundary.
type CreateJobRequest struct {
	IdempotencyKey   string
	Instruction      string
	InputURI         string
	ForcedCapability job.Capability
	ModelBundle      string
	MaxIterations    int
	Metadata         job.Metadata
}

// CreateJob inserts a new Job, or returns the existing Job unchanged if
// IdempotencyKey has already been used.
func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (job.Job, bool, error) {
	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = s.MaxIterations
	}

	j := job.Job{
		IdempotencyKey:   req.IdempotencyKey,
		Status:           job.StatusQueued,
		Instruction:      req.Instruction,
		InputURI:         req.InputURI,
		Capability:       req.ForcedCapability,
		ForcedCapability: req.ForcedCapability,
		ModelBundle:      req.ModelBundle,
		MaxIterations:    maxIterations,
		Metadata:         req.Metadata,
	}

	created, isNew, err := s.Store.CreateJob(ctx, j)
	if err != nil {
		return job.Job{}, false, fmt.Errorf("orchestrator: create job: %w", err)
	}
	if isNew {
		_, _ = s.Store.LogJobEvent(ctx, job.Event{
			JobID:   created.ID,
			Stage:   "job_created",
			Level:   job.LevelInfo,
			Message: "Job created",
			Payload: map[string]any{"instruction": created.Instruction},
		})
	}
	return created, isNew, nil
}

// WorkflowInput is the VideoEditWorkflow's argument.
type WorkflowInput struct {
	JobID string `json:"job_id"`
}

// WorkflowResult is the VideoEditWorkflow's return value.
type WorkflowResult struct {
	FinalStatus job.Status `json:"final_status"`
	Iterations  int        `json:"iterations"`
	OutputURI   string     `json:"output_uri"`
}

// StartOrchestration begins running a Job's workflow. It prefers the
// durable engine; if that is unavailable (nil, or fails to start) it falls
// back to the in-memory engine when EnableFallbackOrchestrator is set,
// otherwise it marks the Job failed and returns
// errkit.ErrWorkflowUnavailable.
func (s *Service) StartOrchestration(ctx context.Context, jobID string) error {
	req := engine.WorkflowStartRequest{
		ID:        "video-edit-" + jobID,
		Workflow:  WorkflowName,
		TaskQueue: s.DurableTaskQueue,
		Input:     WorkflowInput{JobID: jobID},
	}

	if s.Durable != nil {
		if _, err := s.Durable.StartWorkflow(ctx, req); err == nil {
			_, _ = s.Store.LogJobEvent(ctx, job.Event{
				JobID: jobID, Stage: "workflow_started", Level: job.LevelInfo,
				Message: "Durable workflow started",
				Payload: map[string]any{"task_queue": s.DurableTaskQueue},
			})
			return nil
		} else {
			_, _ = s.Store.LogJobEvent(ctx, job.Event{
				JobID: jobID, Stage: "workflow_start_error", Level: job.LevelError,
				Message: "Failed to start durable workflow",
				Payload: map[string]any{"error": err.Error()},
			})
		}
	}

	if s.EnableFallbackOrchestrator {
		claimed, lockErr := s.FallbackLock.TryAcquire(ctx, jobID)
		if lockErr != nil && s.Logger != nil {
			s.Logger.Warn(ctx, "fallback in-flight lock unavailable, proceeding without it", "job_id", jobID, "error", lockErr.Error())
		}
		if lockErr == nil && !claimed {
			_, _ = s.Store.LogJobEvent(ctx, job.Event{
				JobID: jobID, Stage: "fallback_duplicate_suppressed", Level: job.LevelWarning,
				Message: "Fallback orchestration already in flight for this job, skipping duplicate start",
			})
			return nil
		}
		if _, err := s.Fallback.StartWorkflow(ctx, req); err != nil {
			s.FallbackLock.Release(ctx, jobID)
			return fmt.Errorf("orchestrator: start fallback workflow: %w", err)
		}
		_, _ = s.Store.LogJobEvent(ctx, job.Event{
			JobID: jobID, Stage: "fallback_started", Level: job.LevelWarning,
			Message: "Durable engine unavailable, fallback orchestrator started",
		})
		return nil
	}

	_, _ = s.Store.SetJobStatus(ctx, jobID, job.StatusFailed, false)
	_, _ = s.Store.LogJobEvent(ctx, job.Event{
		JobID: jobID, Stage: "job_failed", Level: job.LevelError,
		Message: "Durable engine unavailable and fallback disabled",
	})
	return errkit.New(errkit.ErrWorkflowUnavailable, "unable to start workflow")
}

// RegisterWith registers the workflow and every activity against eng. It
// is called once for the durable engine and once for the fallback engine
// so both run the identical state machine.
func (s *Service) RegisterWith(ctx context.Context, eng engine.Engine, taskQueue string) error {
	if err := eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name:      WorkflowName,
		TaskQueue: taskQueue,
		Handler:   s.workflow,
	}); err != nil {
		return fmt.Errorf("orchestrator: register workflow: %w", err)
	}

	activities := map[string]engine.ActivityFunc{
		ActivitySafetyPrecheck:      s.safetyPrecheckActivity,
		ActivityPlanIteration:       s.planIterationActivity,
		ActivityExecuteIteration:    s.executeIterationActivity,
		ActivityQAIteration:         s.qaIterationActivity,
		ActivityFinalizeSucceeded:   s.finalizeSucceededActivity,
		ActivityFinalizeHumanReview: s.finalizeHumanReviewActivity,
		ActivityFinalizeBlocked:     s.finalizeBlockedActivity,
	}
	for name, handler := range activities {
		if err := eng.RegisterActivity(ctx, engine.ActivityDefinition{Name: name, Handler: handler}); err != nil {
			return fmt.Errorf("orchestrator: register activity %s: %w", name, err)
		}
	}
	return nil
}

// workflow is the VideoEditWorkflow entry point, identical across the
// durable and fallback engines. It runs the safety precheck, then the
// plan/execute/QA loop up to MaxIterations, finalizing the Job on a
// blocked, succeeded, human_review, or exhausted outcome.
func (s *Service) workflow(wctx engine.WorkflowContext, input any) (any, error) {
	in, ok := input.(WorkflowInput)
	if !ok {
		return nil, fmt.Errorf("orchestrator: unexpected workflow input type %T", input)
	}
	ctx := wctx.Context()
	jobID := in.JobID

	var precheck safetyPrecheckResult
	if err := wctx.ExecuteActivity(ctx, engine.ActivityRequest{Name: ActivitySafetyPrecheck, Input: safetyPrecheckInput{JobID: jobID}}, &precheck); err != nil {
		return nil, err
	}
	if precheck.Blocked {
		if err := wctx.ExecuteActivity(ctx, engine.ActivityRequest{Name: ActivityFinalizeBlocked, Input: finalizeBlockedInput{JobID: jobID, Reason: precheck.Reason}}, new(struct{})); err != nil {
			return nil, err
		}
		return WorkflowResult{FinalStatus: job.StatusBlocked, Iterations: 0}, nil
	}

	var priorIssues []job.Issue
	var latestOutputURI string
	var latestReport job.QAReport
	maxIterations := s.MaxIterations

	for iteration := 1; iteration <= maxIterations; iteration++ {
		var plan job.EditPlan
		planIn := planIterationInput{JobID: jobID, Iteration: iteration, PriorIssues: priorIssues}
		if err := wctx.ExecuteActivity(ctx, engine.ActivityRequest{Name: ActivityPlanIteration, Input: planIn}, &plan); err != nil {
			return nil, err
		}

		var execOut executeIterationOutput
		execIn := executeIterationInput{JobID: jobID, Iteration: iteration, Plan: plan}
		if err := wctx.ExecuteActivity(ctx, engine.ActivityRequest{Name: ActivityExecuteIteration, Input: execIn}, &execOut); err != nil {
			return nil, err
		}
		latestOutputURI = execOut.OutputURI

		var report job.QAReport
		qaIn := qaIterationInput{JobID: jobID, Iteration: iteration, Capability: plan.Capability, OutputURI: execOut.OutputURI}
		if err := wctx.ExecuteActivity(ctx, engine.ActivityRequest{Name: ActivityQAIteration, Input: qaIn}, &report); err != nil {
			return nil, err
		}
		latestReport = report

		if qa.ShouldPass(report, s.QAThreshold) {
			var finalizeOut finalizeIterationOutput
			finIn := finalizeIterationInput{JobID: jobID, Iteration: iteration, Capability: plan.Capability, Report: report}
			if err := wctx.ExecuteActivity(ctx, engine.ActivityRequest{Name: ActivityFinalizeSucceeded, Input: finIn}, &finalizeOut); err != nil {
				return nil, err
			}
			if finalizeOut.RoutedManualReview {
				return WorkflowResult{FinalStatus: job.StatusHumanReview, Iterations: iteration, OutputURI: latestOutputURI}, nil
			}
			return WorkflowResult{FinalStatus: job.StatusSucceeded, Iterations: iteration, OutputURI: latestOutputURI}, nil
		}

		priorIssues = report.Issues
	}

	finIn := finalizeHumanReviewInput{JobID: jobID, Report: latestReport, FailureReason: "qa_not_passed_after_max_iterations"}
	if err := wctx.ExecuteActivity(ctx, engine.ActivityRequest{Name: ActivityFinalizeHumanReview, Input: finIn}, new(struct{})); err != nil {
		return nil, err
	}
	return WorkflowResult{FinalStatus: job.StatusHumanReview, Iterations: maxIterations, OutputURI: latestOutputURI}, nil
}

type safetyPrecheckInput struct {
	JobID string
}

type safetyPrecheckResult struct {
	Blocked bool
	Reason  string
}

// safetyPrecheckActivity runs the safety gate once per job and persists
// the SafetyEvent, the Job's classified risk level, and (when blocked)
// the blocked status plus callback notification.
func (s *Service) safetyPrecheckActivity(ctx context.Context, input any) (any, error) {
	in := input.(safetyPrecheckInput)

	j, err := s.Store.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: safety precheck: get job: %w", err)
	}

	adminOverride := j.Metadata.AdminOverrideRequested()
	overrideReason := j.Metadata.OverrideReason()
	result := safety.Evaluate(j.Instruction, adminOverride, overrideReason, s.SafetyOverrideAllowRules, s.HighRiskReviewKeywords)

	riskLevel := result.RiskLevel
	if _, err := s.Store.ApplyPatch(ctx, in.JobID, store.JobPatch{RiskLevel: &riskLevel}); err != nil {
		return nil, fmt.Errorf("orchestrator: safety precheck: apply risk level: %w", err)
	}

	_, err = s.Store.LogSafetyEvent(ctx, job.SafetyEvent{
		JobID:   in.JobID,
		Blocked: !result.Allowed,
		RuleIDs: result.BlockedRules,
		Reason:  result.Reason,
		Payload: map[string]any{
			"instruction":       j.Instruction,
			"override_requested": adminOverride,
			"override_reason":   overrideReason,
		},
		RiskLevel:       riskLevel,
		OverrideApplied: result.OverrideApplied,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: safety precheck: log safety event: %w", err)
	}

	if result.OverrideApplied {
		_, _ = s.Store.LogJobEvent(ctx, job.Event{
			JobID: in.JobID, Stage: "safety_override_applied", Level: job.LevelWarning,
			Message: "Admin safety override applied",
			Payload: map[string]any{"blocked_rules": result.BlockedRules, "override_reason": overrideReason},
		})
	}

	if !result.Allowed {
		return safetyPrecheckResult{Blocked: true, Reason: result.Reason}, nil
	}
	return safetyPrecheckResult{Blocked: false}, nil
}

type finalizeBlockedInput struct {
	JobID  string
	Reason string
}

func (s *Service) finalizeBlockedActivity(ctx context.Context, input any) (any, error) {
	in := input.(finalizeBlockedInput)

	j, err := s.Store.SetJobStatus(ctx, in.JobID, job.StatusBlocked, true)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: finalize blocked: set status: %w", err)
	}
	_, _ = s.Store.LogJobEvent(ctx, job.Event{
		JobID: in.JobID, Stage: "job_blocked", Level: job.LevelWarning,
		Message: "Blocked by safety policy",
		Payload: map[string]any{"reason": in.Reason},
	})

	s.notifyCallback(ctx, j, job.StatusBlocked, job.QAReport{RawReport: map[string]any{"reason": in.Reason}})
	s.FallbackLock.Release(ctx, in.JobID)
	return struct{}{}, nil
}

type planIterationInput struct {
	JobID       string
	Iteration   int
	PriorIssues []job.Issue
}

// planIterationActivity advisory-searches the knowledge base (its result is
// not currently consumed by the planner fixture) and generates the
// iteration's EditPlan, persisting the detected capability back onto the
// Job.
func (s *Service) planIterationActivity(ctx context.Context, input any) (any, error) {
	in := input.(planIterationInput)

	j, err := s.Store.SetJobStatus(ctx, in.JobID, job.StatusPlanning, true)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: plan iteration: set status: %w", err)
	}

	if s.Knowledge != nil {
		_, _ = s.Knowledge.Search(ctx, j.Instruction, 5)
	}

	modelBundle := j.ModelBundle
	if modelBundle == "" {
		modelBundle = s.DefaultModelBundle
	}

	plan := planner.GeneratePlan(j.Instruction, modelBundle, in.PriorIssues, j.ForcedCapability, s.MaxIterations)

	capability := plan.Capability
	if _, err := s.Store.ApplyPatch(ctx, in.JobID, store.JobPatch{Capability: &capability, ModelBundle: &modelBundle}); err != nil {
		return nil, fmt.Errorf("orchestrator: plan iteration: apply capability: %w", err)
	}

	return plan, nil
}

type executeIterationInput struct {
	JobID     string
	Iteration int
	Plan      job.EditPlan
}

type executeIterationOutput struct {
	OutputURI string
}

func (s *Service) executeIterationActivity(ctx context.Context, input any) (any, error) {
	in := input.(executeIterationInput)

	j, err := s.Store.SetJobStatus(ctx, in.JobID, job.StatusEditing, true)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: execute iteration: set status: %w", err)
	}

	result, err := s.Executor.Execute(ctx, in.JobID, in.Iteration, j.InputURI, j.Instruction, in.Plan)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: execute iteration: %w", err)
	}

	executionLog := map[string]any{
		"timestamp":    result.ExecutionLog.Timestamp,
		"input_uri":    result.ExecutionLog.InputURI,
		"output_uri":   result.ExecutionLog.OutputURI,
		"capability":   result.ExecutionLog.Capability,
		"tool_chain":   result.ExecutionLog.ToolChain,
		"runtime_mode": result.ExecutionLog.RuntimeMode,
		"provider":     result.ExecutionLog.Provider,
		"notes":        result.ExecutionLog.Notes,
	}
	if _, err := s.Store.CreateIteration(ctx, job.Iteration{
		JobID: in.JobID, Iteration: in.Iteration, EditPlan: in.Plan,
		ExecutionLog: executionLog, OutputURI: result.OutputURI,
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: execute iteration: create iteration: %w", err)
	}

	outputURI := result.OutputURI
	currentIteration := in.Iteration
	if _, err := s.Store.ApplyPatch(ctx, in.JobID, store.JobPatch{OutputURI: &outputURI, CurrentIteration: &currentIteration}); err != nil {
		return nil, fmt.Errorf("orchestrator: execute iteration: apply output: %w", err)
	}
	_, _ = s.Store.LogJobEvent(ctx, job.Event{
		JobID: in.JobID, Stage: "iteration_completed", Level: job.LevelInfo,
		Message: "Iteration completed", Payload: map[string]any{"iteration": in.Iteration, "output_uri": outputURI},
	})

	return executeIterationOutput{OutputURI: result.OutputURI}, nil
}

type qaIterationInput struct {
	JobID      string
	Iteration  int
	Capability job.Capability
	OutputURI  string
}

func (s *Service) qaIterationActivity(ctx context.Context, input any) (any, error) {
	in := input.(qaIterationInput)

	j, err := s.Store.SetJobStatus(ctx, in.JobID, job.StatusQA, true)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: qa iteration: set status: %w", err)
	}

	report := qa.Evaluate(qa.Context{
		Instruction: j.Instruction,
		Iteration:   in.Iteration,
		Capability:  in.Capability,
		OutputURI:   in.OutputURI,
	})
	report.JobID = in.JobID

	created, err := s.Store.CreateQAReport(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: qa iteration: create report: %w", err)
	}
	return created, nil
}

type finalizeIterationInput struct {
	JobID      string
	Iteration  int
	Capability job.Capability
	Report     job.QAReport
}

type finalizeIterationOutput struct {
	RoutedManualReview bool
}

// finalizeSucceededActivity decides, for a passing QAReport, whether the
// job routes to manual review (risk-based or stable random sample) or
// completes automatically, archiving a CaseRecord and notifying the
// callback either way.
func (s *Service) finalizeSucceededActivity(ctx context.Context, input any) (any, error) {
	in := input.(finalizeIterationInput)

	j, err := s.Store.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: finalize succeeded: get job: %w", err)
	}

	routeManual, reasons := qa.ShouldRouteManualReview(in.JobID, in.Report, s.QAThreshold, j.RiskLevel, s.QARandomReviewRatio)
	if routeManual {
		tags := []string{string(in.Capability), "human_review"}
		for _, reason := range reasons {
			if reason == "random_spot_check" {
				tags = append(tags, "random_sampled")
			}
			if reason == "high_risk_task_requires_manual_review" {
				tags = append(tags, "high_risk")
			}
		}

		j, err = s.Store.SetJobStatus(ctx, in.JobID, job.StatusHumanReview, true)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: finalize succeeded: set human_review: %w", err)
		}
		s.archiveCase(ctx, j, in.Iteration, tags, strings.Join(reasons, ","), "manual_review_required", in.Report)
		_, _ = s.Store.LogJobEvent(ctx, job.Event{
			JobID: in.JobID, Stage: "manual_review_routed", Level: job.LevelWarning,
			Message: "QA passed but routed to manual review",
			Payload: map[string]any{"reason": strings.Join(reasons, ",")},
		})
		s.notifyCallback(ctx, j, job.StatusHumanReview, in.Report)
		s.Callback.NotifyHumanReview(ctx, in.JobID, reasons)
		s.FallbackLock.Release(ctx, in.JobID)
		return finalizeIterationOutput{RoutedManualReview: true}, nil
	}

	j, err = s.Store.SetJobStatus(ctx, in.JobID, job.StatusSucceeded, true)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: finalize succeeded: set succeeded: %w", err)
	}
	s.archiveCase(ctx, j, in.Iteration, []string{string(in.Capability), "auto_passed"}, "", "n/a", in.Report)
	s.notifyCallback(ctx, j, job.StatusSucceeded, in.Report)
	s.FallbackLock.Release(ctx, in.JobID)
	return finalizeIterationOutput{RoutedManualReview: false}, nil
}

type finalizeHumanReviewInput struct {
	JobID         string
	Report        job.QAReport
	FailureReason string
}

// finalizeHumanReviewActivity runs when the iteration budget is exhausted
// without a passing QAReport: the job still routes to human_review rather
// than a hard failure.
func (s *Service) finalizeHumanReviewActivity(ctx context.Context, input any) (any, error) {
	in := input.(finalizeHumanReviewInput)

	j, err := s.Store.SetJobStatus(ctx, in.JobID, job.StatusHumanReview, true)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: finalize human review: set status: %w", err)
	}

	capability := j.Capability
	if capability == "" {
		capability = "unknown"
	}
	s.archiveCase(ctx, j, j.MaxIterations, []string{string(capability), "human_review"}, in.FailureReason, "manual_review_required", in.Report)
	s.notifyCallback(ctx, j, job.StatusHumanReview, in.Report)
	s.FallbackLock.Release(ctx, in.JobID)
	return struct{}{}, nil
}

func (s *Service) archiveCase(ctx context.Context, j job.Job, iteration int, tags []string, failureReason, fixStrategy string, report job.QAReport) {
	record := job.CaseRecord{
		JobID:         j.ID,
		Tags:          tags,
		FailureReason: failureReason,
		FixStrategy:   fixStrategy,
		FinalMetrics: map[string]any{
			"overall_score": report.OverallScore,
			"iterations":    iteration,
			"threshold":     s.QAThreshold,
		},
	}
	if s.Knowledge != nil {
		record = s.Knowledge.Archive(ctx, record, j.Instruction)
	} else {
		record.TaskSummary = j.Instruction
	}
	if _, err := s.Store.CreateCaseRecord(ctx, record); err != nil && s.Logger != nil {
		s.Logger.Warn(ctx, "failed to archive case record", "job_id", j.ID, "error", err.Error())
	}
}

func (s *Service) notifyCallback(ctx context.Context, j job.Job, finalStatus job.Status, report job.QAReport) {
	s.notifyCallbackWithSource(ctx, j, finalStatus, report, "")
}

func (s *Service) notifyCallbackWithSource(ctx context.Context, j job.Job, finalStatus job.Status, report job.QAReport, source string) {
	if s.Callback == nil {
		return
	}
	callbackURL := callback.CallbackURLFromMetadata(j.Metadata)
	if callbackURL == "" {
		return
	}

	score := j.LatestQAScore
	if score == nil && report.OverallScore != 0 {
		overall := report.OverallScore
		score = &overall
	}

	var qaReport *job.QAReport
	if report.Iteration > 0 {
		r := report
		qaReport = &r
	}

	result := s.Callback.Deliver(ctx, callbackURL, callback.Payload{
		JobID: j.ID, Status: finalStatus, Instruction: j.Instruction, Capability: j.Capability,
		OutputURI: j.OutputURI, LatestQAScore: score, QAReport: qaReport,
		Source: source,
	})

	level := job.LevelInfo
	message := "Callback delivered"
	if !result.Delivered {
		level = job.LevelWarning
		message = "Callback delivery failed"
	}
	_, _ = s.Store.LogJobEvent(ctx, job.Event{
		JobID: j.ID, Stage: "callback_delivery", Level: level, Message: message,
		Payload: map[string]any{"callback_url": callbackURL, "detail": result.Detail, "status": string(finalStatus)},
	})
}

// HandleReviewDecision applies a human reviewer's decision to a Job in
// human_review (approve/reject), or resets it to queued and restarts
// orchestration (rerun, also allowed from failed).
func (s *Service) HandleReviewDecision(ctx context.Context, jobID string, decision job.ReviewDecision, reviewer, reason string) (job.Job, error) {
	j, err := s.Store.GetJob(ctx, jobID)
	if err != nil {
		return job.Job{}, err
	}

	switch decision {
	case job.DecisionApprove, job.DecisionReject:
		if j.Status != job.StatusHumanReview {
			return job.Job{}, errkit.New(errkit.ErrInvalidState, fmt.Sprintf("job status must be human_review for %s", decision))
		}
	case job.DecisionRerun:
		if j.Status != job.StatusHumanReview && j.Status != job.StatusFailed {
			return job.Job{}, errkit.New(errkit.ErrInvalidState, "job status must be human_review or failed for rerun")
		}
	default:
		return job.Job{}, errkit.New(errkit.ErrValidation, fmt.Sprintf("unknown review decision %q", decision))
	}

	if _, err := s.Store.CreateReviewAction(ctx, job.ReviewAction{JobID: jobID, Decision: decision, Reviewer: reviewer, Reason: reason}); err != nil {
		return job.Job{}, fmt.Errorf("orchestrator: handle review decision: create review action: %w", err)
	}

	switch decision {
	case job.DecisionApprove:
		j, err = s.Store.SetJobStatus(ctx, jobID, job.StatusSucceeded, true)
	case job.DecisionReject:
		j, err = s.Store.SetJobStatus(ctx, jobID, job.StatusFailed, true)
	case job.DecisionRerun:
		if j, err = s.Store.ResetForRerun(ctx, jobID); err == nil {
			if startErr := s.StartOrchestration(ctx, jobID); startErr != nil {
				return j, startErr
			}
		}
	}
	if err != nil {
		return job.Job{}, fmt.Errorf("orchestrator: handle review decision: %w", err)
	}

	if decision == job.DecisionApprove || decision == job.DecisionReject {
		s.notifyCallbackWithSource(ctx, j, j.Status, job.QAReport{}, "manual_review")
		s.FallbackLock.Release(ctx, jobID)
	}
	return j, nil
}
