package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/clipforge/editpipeline/internal/clock"
	"github.com/clipforge/editpipeline/internal/errkit"
	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/telemetry"
)

// RemoteExecutor executes plans by POSTing to a hosted video-edit model
// API, with bounded retries, a circuit breaker around the endpoint, and a
// token-bucket limiter bounding outbound request rate.
type RemoteExecutor struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	AllowStubFallback bool
	Provider          string

	HTTPClient *http.Client
	Clock      clock.Clock
	Logger     telemetry.Logger

	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewRemoteExecutor constructs a RemoteExecutor with its circuit breaker
// and rate limiter initialized. requestsPerSecond bounds outbound calls to
// the model API; burst allows short spikes above that steady rate.
func NewRemoteExecutor(baseURL, apiKey string, timeout time.Duration, maxRetries int, allowStubFallback bool, requestsPerSecond float64, burst int, logger telemetry.Logger) *RemoteExecutor {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote_video_edit",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	if burst <= 0 {
		burst = int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &RemoteExecutor{
		BaseURL:           baseURL,
		APIKey:            apiKey,
		Timeout:           timeout,
		MaxRetries:        maxRetries,
		AllowStubFallback: allowStubFallback,
		Provider:          "remote_api",
		HTTPClient:        &http.Client{Timeout: timeout},
		Clock:             clock.System{},
		Logger:            logger,
		breaker:           breaker,
		limiter:           rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

type remoteEditRequest struct {
	JobID       string              `json:"job_id"`
	Iteration   int                 `json:"iteration"`
	InputURI    string              `json:"input_uri"`
	Instruction string              `json:"instruction"`
	Capability  job.Capability      `json:"capability"`
	ToolChain   []string            `json:"tool_chain"`
	Constraints job.PlanConstraints `json:"constraints"`
	ModelBundle string              `json:"model_bundle"`
}

type remoteEditResponse struct {
	OutputURI string `json:"output_uri"`
}

// Execute POSTs the plan to BaseURL + "/v1/video/edit", retrying up to
// MaxRetries+1 attempts with backoff min(1.2*i, 3) seconds between
// attempts. On exhaustion, it degrades to a synthetic output URI when
// AllowStubFallback is set; otherwise it returns an
// errkit.ErrExecutorRemoteFailed error.
func (e *RemoteExecutor) Execute(ctx context.Context, jobID string, iteration int, inputURI, instruction string, plan job.EditPlan) (Result, error) {
	outputURI := stubOutputURI(jobID, iteration)
	notes := ""

	if e.BaseURL == "" {
		notes = "MODEL_API_BASE_URL is not configured; used stub fallback"
		if !e.AllowStubFallback {
			return Result{}, errkit.New(errkit.ErrExecutorRemoteFailed, "MODEL_API_BASE_URL is not configured")
		}
	} else {
		payload := remoteEditRequest{
			JobID:       jobID,
			Iteration:   iteration,
			InputURI:    inputURI,
			Instruction: instruction,
			Capability:  plan.Capability,
			ToolChain:   plan.ToolChain,
			Constraints: plan.Constraints,
			ModelBundle: plan.ModelBundle,
		}

		data, lastErr := e.callWithRetry(ctx, payload)
		switch {
		case lastErr == nil:
			outputURI = data.OutputURI
			if outputURI == "" {
				outputURI = stubOutputURI(jobID, iteration)
			}
			notes = "Executed via remote API provider"
		case e.AllowStubFallback:
			notes = fmt.Sprintf("Remote API unavailable; used stub fallback (%s)", lastErr)
		default:
			return Result{}, errkit.Wrap(errkit.ErrExecutorRemoteFailed, "remote model execution failed", lastErr)
		}
	}

	return Result{
		OutputURI: outputURI,
		ExecutionLog: job.ExecutionLog{
			Timestamp:   e.Clock.Now(),
			InputURI:    inputURI,
			OutputURI:   outputURI,
			Capability:  plan.Capability,
			ToolChain:   plan.ToolChain,
			RuntimeMode: "api",
			Provider:    e.Provider,
			Constraints: plan.Constraints,
			Notes:       notes,
		},
	}, nil
}

func (e *RemoteExecutor) callWithRetry(ctx context.Context, payload remoteEditRequest) (remoteEditResponse, error) {
	attempts := e.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		resp, err := e.callOnce(ctx, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if e.Logger != nil {
			e.Logger.Warn(ctx, "remote executor attempt failed", "attempt", i, "error", err.Error())
		}
		if i < attempts {
			backoff := time.Duration(min(1.2*float64(i), 3.0) * float64(time.Second))
			select {
			case <-ctx.Done():
				return remoteEditResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return remoteEditResponse{}, lastErr
}

func (e *RemoteExecutor) callOnce(ctx context.Context, payload remoteEditRequest) (remoteEditResponse, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return remoteEditResponse{}, err
	}

	result, err := e.breaker.Execute(func() (any, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		endpoint := e.BaseURL + "/v1/video/edit"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if e.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.APIKey)
		}

		resp, err := e.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, truncate(respBody, 500))
		}

		var decoded remoteEditResponse
		if len(respBody) > 0 {
			if err := json.Unmarshal(respBody, &decoded); err != nil {
				return nil, err
			}
		}
		return decoded, nil
	})
	if err != nil {
		return remoteEditResponse{}, err
	}
	return result.(remoteEditResponse), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
