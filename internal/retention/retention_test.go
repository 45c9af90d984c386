package retention_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/editpipeline/internal/clock"
	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/retention"
	"github.com/clipforge/editpipeline/internal/store/memory"
)

func TestSweeper_FlagsOnlyExpiredTerminalJobs(t *testing.T) {
	ctx := context.Background()
	past := time.Now().UTC().Add(-40 * 24 * time.Hour)
	s := memory.New().WithClock(clock.Fixed{At: past})

	aged, _, err := s.CreateJob(ctx, job.Job{Status: job.StatusQueued, Instruction: "aged job", MaxIterations: 3})
	require.NoError(t, err)
	_, err = s.SetJobStatus(ctx, aged.ID, job.StatusBlocked, false)
	require.NoError(t, err)

	s = s.WithClock(clock.System{})
	fresh, _, err := s.CreateJob(ctx, job.Job{Status: job.StatusQueued, Instruction: "fresh job", MaxIterations: 3})
	require.NoError(t, err)
	_, err = s.SetJobStatus(ctx, fresh.ID, job.StatusBlocked, false)
	require.NoError(t, err)

	notTerminal, _, err := s.CreateJob(ctx, job.Job{Status: job.StatusQueued, Instruction: "still running", MaxIterations: 3})
	require.NoError(t, err)

	sweeper := retention.NewSweeper(s, 30, 7, 90, 100, nil)
	flagged, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, flagged) // aged job crosses both raw(30d) and intermediate(7d) windows

	events, err := s.ListJobEvents(ctx, aged.ID, 10)
	require.NoError(t, err)
	var categories []string
	for _, e := range events {
		if e.Stage == "retention_expired" {
			categories = append(categories, e.Payload["category"].(string))
		}
	}
	assert.ElementsMatch(t, []string{"raw", "intermediate"}, categories)

	freshEvents, err := s.ListJobEvents(ctx, fresh.ID, 10)
	require.NoError(t, err)
	for _, e := range freshEvents {
		assert.NotEqual(t, "retention_expired", e.Stage)
	}

	runningEvents, err := s.ListJobEvents(ctx, notTerminal.ID, 10)
	require.NoError(t, err)
	for _, e := range runningEvents {
		assert.NotEqual(t, "retention_expired", e.Stage)
	}
}
