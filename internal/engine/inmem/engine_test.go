package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/clipforge/editpipeline/internal/engine"
)

type planInput struct {
	JobID string
}

type planOutput struct {
	Steps int
}

func TestExecuteActivity(t *testing.T) {
	eng := New(Options{})
	ctx := context.Background()

	err := eng.RegisterActivity(ctx, engine.ActivityDefinition{
		Name: "plan_iteration",
		Handler: func(_ context.Context, input any) (any, error) {
			in, _ := input.(planInput)
			if in.JobID == "" {
				t.Errorf("expected job id to be set")
			}
			return planOutput{Steps: 3}, nil
		},
	})
	if err != nil {
		t.Fatalf("register activity: %v", err)
	}

	err = eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "edit_job_workflow",
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			var out planOutput
			if err := wfCtx.ExecuteActivity(wfCtx.Context(), engine.ActivityRequest{
				Name:  "plan_iteration",
				Input: input,
			}, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	})
	if err != nil {
		t.Fatalf("register workflow: %v", err)
	}

	handle, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       "job-1",
		Workflow: "edit_job_workflow",
		Input:    planInput{JobID: "job-1"},
	})
	if err != nil {
		t.Fatalf("start workflow: %v", err)
	}

	var result planOutput
	if err := handle.Wait(ctx, &result); err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	if result.Steps != 3 {
		t.Errorf("expected 3 steps, got %d", result.Steps)
	}
}

func TestExecuteActivityAsyncAllowsParallelWork(t *testing.T) {
	eng := New(Options{})
	ctx := context.Background()

	err := eng.RegisterActivity(ctx, engine.ActivityDefinition{
		Name: "qa_iteration",
		Handler: func(_ context.Context, input any) (any, error) {
			return "scored", nil
		},
	})
	if err != nil {
		t.Fatalf("register activity: %v", err)
	}

	err = eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "qa_workflow",
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			fut, err2 := wfCtx.ExecuteActivityAsync(wfCtx.Context(), engine.ActivityRequest{Name: "qa_iteration"})
			if err2 != nil {
				return nil, err2
			}
			var out string
			if err2 := fut.Get(wfCtx.Context(), &out); err2 != nil {
				return nil, err2
			}
			return out, nil
		},
	})
	if err != nil {
		t.Fatalf("register workflow: %v", err)
	}

	handle, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       "job-2",
		Workflow: "qa_workflow",
	})
	if err != nil {
		t.Fatalf("start workflow: %v", err)
	}

	var result string
	if err := handle.Wait(ctx, &result); err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	if result != "scored" {
		t.Errorf("expected %q, got %q", "scored", result)
	}
}

func TestSignalDelivery(t *testing.T) {
	eng := New(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type reviewDecision struct {
		Approved bool
	}

	err := eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "human_review_workflow",
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			var decision reviewDecision
			if err := wfCtx.SignalChannel("review_decision").Receive(wfCtx.Context(), &decision); err != nil {
				return nil, err
			}
			return decision, nil
		},
	})
	if err != nil {
		t.Fatalf("register workflow: %v", err)
	}

	handle, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       "job-3",
		Workflow: "human_review_workflow",
	})
	if err != nil {
		t.Fatalf("start workflow: %v", err)
	}

	if err := handle.Signal(ctx, "review_decision", reviewDecision{Approved: true}); err != nil {
		t.Fatalf("signal workflow: %v", err)
	}

	var result reviewDecision
	if err := handle.Wait(ctx, &result); err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	if !result.Approved {
		t.Errorf("expected approved decision to survive the signal round-trip")
	}
}
