// Package callback delivers job outcome notifications to the caller-supplied
// callback_url and, optionally, a Slack channel for manual-review routing.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clipforge/editpipeline/internal/clock"
	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/telemetry"
)

// Payload is the JSON body POSTed to a Job's callback_url on every terminal
// or human_review transition.
type Payload struct {
	JobID         string         `json:"job_id"`
	Status        job.Status     `json:"status"`
	Instruction   string         `json:"instruction,omitempty"`
	Capability    job.Capability `json:"capability,omitempty"`
	OutputURI     string         `json:"output_uri,omitempty"`
	LatestQAScore *float64       `json:"latest_qa_score,omitempty"`
	QAReport      *job.QAReport  `json:"qa_report,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Source        string         `json:"source,omitempty"`
}

// Dispatcher delivers Payloads to a Job's callback_url with bounded retries,
// and mirrors human_review notifications to Slack when configured.
type Dispatcher struct {
	Timeout    time.Duration
	MaxRetries int

	HTTPClient *http.Client
	Clock      clock.Clock
	Logger     telemetry.Logger

	Slack SlackNotifier
}

// SlackNotifier posts a message to a fixed channel/webhook. It models
// slack-go/slack's webhook client so Dispatcher stays decoupled from the
// concrete client type and is easy to stub in tests.
type SlackNotifier interface {
	Notify(ctx context.Context, text string) error
}

// NewDispatcher constructs a Dispatcher. slack may be nil, in which case
// human_review notifications are only delivered via callback_url.
func NewDispatcher(timeout time.Duration, maxRetries int, logger telemetry.Logger, slack SlackNotifier) *Dispatcher {
	return &Dispatcher{
		Timeout:    timeout,
		MaxRetries: maxRetries,
		HTTPClient: &http.Client{Timeout: timeout},
		Clock:      clock.System{},
		Logger:     logger,
		Slack:      slack,
	}
}

// Result reports the outcome of a single Deliver call as an (ok, detail)
// pair so callers can log or record the detail string themselves.
type Result struct {
	Delivered bool
	Detail    string
}

// Deliver POSTs payload as JSON to callbackURL, retrying up to
// MaxRetries+1 attempts with backoff min(1.5*i, 3) seconds between
// attempts. A blank callbackURL is a no-op success: callback delivery is
// optional per job.
func (d *Dispatcher) Deliver(ctx context.Context, callbackURL string, payload Payload) Result {
	if callbackURL == "" {
		return Result{Delivered: true, Detail: "no callback_url configured"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Delivered: false, Detail: fmt.Sprintf("marshal payload: %s", err)}
	}

	attempts := d.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastDetail string
	for i := 1; i <= attempts; i++ {
		ok, detail := d.post(ctx, callbackURL, body)
		if ok {
			return Result{Delivered: true, Detail: detail}
		}
		lastDetail = detail
		if i < attempts {
			backoff := time.Duration(min(1.5*float64(i), 3.0) * float64(time.Second))
			select {
			case <-ctx.Done():
				return Result{Delivered: false, Detail: ctx.Err().Error()}
			case <-time.After(backoff):
			}
		}
	}

	if d.Logger != nil {
		d.Logger.Warn(ctx, "callback delivery failed", "url", callbackURL, "error", lastDetail)
	}
	return Result{Delivered: false, Detail: lastDetail}
}

func (d *Dispatcher) post(ctx context.Context, callbackURL string, body []byte) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, fmt.Sprintf("status=%d", resp.StatusCode)
	}
	respBody, _ := io.ReadAll(resp.Body)
	return false, fmt.Sprintf("status=%d body=%s", resp.StatusCode, truncate(respBody, 200))
}

// NotifyHumanReview mirrors a human_review routing decision to Slack, when
// configured. Failure to notify Slack never affects the Job's own status
// or the callback_url delivery outcome; it is logged and swallowed.
func (d *Dispatcher) NotifyHumanReview(ctx context.Context, jobID string, reasons []string) {
	if d.Slack == nil {
		return
	}
	text := fmt.Sprintf("Job %s routed to manual review: %v", jobID, reasons)
	if err := d.Slack.Notify(ctx, text); err != nil && d.Logger != nil {
		d.Logger.Warn(ctx, "slack notification failed", "job_id", jobID, "error", err.Error())
	}
}

// CallbackURLFromMetadata reads and trims the reserved callback_url key,
// returning "" if unset or blank.
func CallbackURLFromMetadata(metadata job.Metadata) string {
	return strings.TrimSpace(metadata.CallbackURL())
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
