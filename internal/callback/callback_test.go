package callback

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/telemetry"
)

func TestDeliver_EmptyURLIsNoopSuccess(t *testing.T) {
	d := NewDispatcher(time.Second, 3, telemetry.NoopLogger{}, nil)
	result := d.Deliver(context.Background(), "", Payload{Status: job.StatusSucceeded})
	assert.True(t, result.Delivered)
}

func TestDeliver_SucceedsOnFirstAttempt(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDispatcher(time.Second, 3, telemetry.NoopLogger{}, nil)
	result := d.Deliver(context.Background(), server.URL, Payload{Status: job.StatusSucceeded})
	assert.True(t, result.Delivered)
	assert.Equal(t, 1, hits)
}

func TestDeliver_RetriesThenFails(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewDispatcher(time.Second, 1, telemetry.NoopLogger{}, nil)
	result := d.Deliver(context.Background(), server.URL, Payload{Status: job.StatusFailed})
	assert.False(t, result.Delivered)
	assert.Equal(t, 2, hits)
}

func TestCallbackURLFromMetadata_TrimsAndHandlesMissing(t *testing.T) {
	assert.Equal(t, "", CallbackURLFromMetadata(nil))
	assert.Equal(t, "https://example.com/hook", CallbackURLFromMetadata(job.Metadata{
		job.MetaCallbackURL: "  https://example.com/hook  ",
	}))
}

func TestDeliver_PayloadShapeMatchesDocumentedContract(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	score := 0.91
	d := NewDispatcher(time.Second, 0, telemetry.NoopLogger{}, nil)
	result := d.Deliver(context.Background(), server.URL, Payload{
		JobID:         "job-1",
		Status:        job.StatusSucceeded,
		Instruction:   "Remove the closed book from the desk",
		Capability:    job.CapabilityRemoveObject,
		OutputURI:     "s3://bucket/job-1/output.mp4",
		LatestQAScore: &score,
		QAReport: &job.QAReport{
			Iteration:       2,
			OverallScore:    score,
			Recommendations: []string{"tighten the crop on frame 40"},
		},
	})
	require.True(t, result.Delivered)

	assert.Equal(t, "job-1", received["job_id"])
	assert.Equal(t, string(job.StatusSucceeded), received["status"])
	assert.Equal(t, 0.91, received["latest_qa_score"])
	require.Contains(t, received, "qa_report")
	qaReport, ok := received["qa_report"].(map[string]any)
	require.True(t, ok, "qa_report should serialize as a JSON object, not be dropped")
	assert.Equal(t, float64(2), qaReport["iteration"])

	assert.NotContains(t, received, "overall_score", "the documented contract names latest_qa_score, not overall_score")
	assert.NotContains(t, received, "hard_fail_flags", "hard_fail_flags now lives nested under qa_report")
}

func TestNotifyHumanReview_NilSlackIsNoop(t *testing.T) {
	d := NewDispatcher(time.Second, 3, telemetry.NoopLogger{}, nil)
	require.NotPanics(t, func() {
		d.NotifyHumanReview(context.Background(), "job-1", []string{"high_risk_task_requires_manual_review"})
	})
}
