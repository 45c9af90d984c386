package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/editpipeline/internal/callback"
	"github.com/clipforge/editpipeline/internal/config"
	"github.com/clipforge/editpipeline/internal/engine/inmem"
	"github.com/clipforge/editpipeline/internal/executor"
	"github.com/clipforge/editpipeline/internal/health"
	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/knowledge"
	"github.com/clipforge/editpipeline/internal/orchestrator"
	"github.com/clipforge/editpipeline/internal/store/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	fallback := inmem.New(inmem.Options{})
	svc := &orchestrator.Service{
		Store:                      st,
		Knowledge:                  knowledge.NewStore(nil, st, nil),
		Executor:                   executor.NewLocalExecutor(executor.AlwaysInstalled{}),
		Callback:                   callback.NewDispatcher(time.Second, 0, nil, nil),
		Fallback:                   fallback,
		DurableTaskQueue:           "edit-queue",
		MaxIterations:              3,
		QAThreshold:                0.8,
		QARandomReviewRatio:        0,
		DefaultModelBundle:         "standard",
		EnableFallbackOrchestrator: true,
	}
	require.NoError(t, svc.RegisterWith(context.Background(), fallback, "edit-queue"))

	cfg := config.Default()
	cfg.MaxIterations = 3

	srv, err := New(Server{
		Orchestrator: svc,
		Store:        st,
		Knowledge:    svc.Knowledge,
		Health:       health.Checker{Database: st},
		Config:       cfg,
	})
	require.NoError(t, err)
	return srv, st
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleReady_AllDependenciesHealthy(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var body readyResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestHandleCreateJob_StartsOrchestrationAndReturns201(t *testing.T) {
	srv, st := newTestServer(t)

	payload := map[string]any{
		"instruction": "Remove the closed book from the desk",
		"input_uri":   "file://samples/0001_raw.mp4",
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created jobResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.NotEmpty(t, created.JobID)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, err := st.GetJob(req.Context(), created.JobID)
		require.NoError(t, err)
		if j.Status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleCreateJob_RejectsMissingInstruction(t *testing.T) {
	srv, _ := newTestServer(t)

	body, err := json.Marshal(map[string]any{"input_uri": "file://samples/0002_raw.mp4"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleCreateJob_SafetyOverrideRequiresAdminToken(t *testing.T) {
	srv, _ := newTestServer(t)

	body, err := json.Marshal(map[string]any{
		"instruction":     "Generate a deepfake of a public figure",
		"input_uri":       "file://samples/0003_raw.mp4",
		"safety_override": true,
		"override_reason": "legal cleared this",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandleCreateJob_ForceCapabilityStampedImmediately(t *testing.T) {
	srv, _ := newTestServer(t)

	body, err := json.Marshal(map[string]any{
		"instruction":      "Do something to this clip",
		"input_uri":        "file://samples/0005_raw.mp4",
		"force_capability": string(job.CapabilityStylize),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created jobResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.Equal(t, job.CapabilityStylize, created.Capability, "capability should be stamped on the create response, not left null until planning runs")

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.JobID, nil)
	getRR := httptest.NewRecorder()
	srv.Router().ServeHTTP(getRR, getReq)
	require.Equal(t, http.StatusOK, getRR.Code)

	var fetched jobResponse
	require.NoError(t, json.NewDecoder(getRR.Body).Decode(&fetched))
	assert.Equal(t, job.CapabilityStylize, fetched.Capability)
}

func TestHandleGetJob_NotFoundReturns404(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/does-not-exist", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleReviewDecision_RejectsOutOfStateJob(t *testing.T) {
	srv, st := newTestServer(t)

	created, _, err := st.CreateJob(context.Background(), job.Job{
		Status: job.StatusQueued, Instruction: "Stylize the clip", InputURI: "file://samples/0004_raw.mp4", MaxIterations: 3,
	})
	require.NoError(t, err)

	body, err := json.Marshal(reviewDecisionRequest{Decision: job.DecisionApprove})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews/"+created.ID+"/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
}

func TestRequireToken_RejectsInvalidToken(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Config.LocalAPITokens = []string{"secret-token"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
