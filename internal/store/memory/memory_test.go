package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/store"
)

func TestCreateJob_IdempotencyKeyDedupes(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, created, err := s.CreateJob(ctx, job.Job{IdempotencyKey: "abc", Instruction: "remove the logo"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	second, created, err := s.CreateJob(ctx, job.Job{IdempotencyKey: "abc", Instruction: "different instruction"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "remove the logo", second.Instruction)
}

func TestSetJobStatus_EnforcesTransitionTable(t *testing.T) {
	s := New()
	ctx := context.Background()

	j, _, err := s.CreateJob(ctx, job.Job{Status: job.StatusQueued, Instruction: "x"})
	require.NoError(t, err)

	_, err = s.SetJobStatus(ctx, j.ID, job.StatusSucceeded, true)
	require.Error(t, err)
	var transitionErr *store.TransitionError
	require.ErrorAs(t, err, &transitionErr)

	updated, err := s.SetJobStatus(ctx, j.ID, job.StatusPlanning, true)
	require.NoError(t, err)
	assert.Equal(t, job.StatusPlanning, updated.Status)

	events, err := s.ListJobEvents(ctx, j.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "status_transition", events[0].Stage)
	assert.Equal(t, "queued", events[0].Payload["from"])
	assert.Equal(t, "planning", events[0].Payload["to"])
}

func TestLogSafetyEvent_AlsoLogsPrecheckJobEvent(t *testing.T) {
	s := New()
	ctx := context.Background()

	j, _, err := s.CreateJob(ctx, job.Job{Status: job.StatusQueued})
	require.NoError(t, err)

	_, err = s.LogSafetyEvent(ctx, job.SafetyEvent{
		JobID:   j.ID,
		Blocked: true,
		RuleIDs: []string{"explicit_violence"},
		Reason:  "matched blocked rule",
	})
	require.NoError(t, err)

	events, err := s.ListJobEvents(ctx, j.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "safety_precheck", events[0].Stage)
	assert.Equal(t, job.LevelWarning, events[0].Level)
	assert.Equal(t, true, events[0].Payload["blocked"])
}

func TestResetForRerun_ClearsIterationState(t *testing.T) {
	s := New()
	ctx := context.Background()

	j, _, err := s.CreateJob(ctx, job.Job{Status: job.StatusQueued})
	require.NoError(t, err)

	score := 0.5
	_, err = s.ApplyPatch(ctx, j.ID, store.JobPatch{LatestQAScore: &score})
	require.NoError(t, err)
	_, err = s.SetJobStatus(ctx, j.ID, job.StatusPlanning, true)
	require.NoError(t, err)
	_, err = s.SetJobStatus(ctx, j.ID, job.StatusEditing, true)
	require.NoError(t, err)
	_, err = s.SetJobStatus(ctx, j.ID, job.StatusQA, true)
	require.NoError(t, err)
	_, err = s.SetJobStatus(ctx, j.ID, job.StatusHumanReview, true)
	require.NoError(t, err)

	reset, err := s.ResetForRerun(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusQueued, reset.Status)
	assert.Nil(t, reset.LatestQAScore)
	assert.Equal(t, 0, reset.CurrentIteration)
}

func TestCreateCaseRecord_LogsCaseArchivedEvent(t *testing.T) {
	s := New()
	ctx := context.Background()

	j, _, err := s.CreateJob(ctx, job.Job{Status: job.StatusQueued})
	require.NoError(t, err)

	record, err := s.CreateCaseRecord(ctx, job.CaseRecord{JobID: j.ID, TaskSummary: "remove object", Tags: []string{"remove_object", "auto_passed"}})
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)

	events, err := s.ListJobEvents(ctx, j.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "case_archived", events[0].Stage)
	assert.Equal(t, record.ID, events[0].Payload["case_id"])
}

func TestGetJob_NotFound(t *testing.T) {
	s := New()
	_, err := s.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
