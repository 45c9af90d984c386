package httpapi

import (
	"time"

	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/modelmanager"
)

// jobCreateRequest mirrors JobCreateRequest: the caller-supplied fields for
// a new submission. Metadata is free-form and validated separately against
// the metadata JSON Schema rather than struct tags.
type jobCreateRequest struct {
	Instruction      string         `json:"instruction" validate:"required,min=3,max=2000"`
	InputURI         string         `json:"input_uri" validate:"required"`
	CallbackURL      string         `json:"callback_url,omitempty" validate:"omitempty,url"`
	ForceCapability  job.Capability `json:"force_capability,omitempty"`
	SafetyOverride   bool           `json:"safety_override,omitempty"`
	OverrideReason   string         `json:"override_reason,omitempty" validate:"omitempty,max=512"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

type jobResponse struct {
	JobID            string         `json:"job_id"`
	Status           job.Status     `json:"status"`
	Instruction      string         `json:"instruction"`
	InputURI         string         `json:"input_uri"`
	OutputURI        string         `json:"output_uri,omitempty"`
	Capability       job.Capability `json:"capability,omitempty"`
	ModelBundle      string         `json:"model_bundle,omitempty"`
	RiskLevel        job.RiskLevel  `json:"risk_level,omitempty"`
	CurrentIteration int            `json:"current_iteration"`
	MaxIterations    int            `json:"max_iterations"`
	LatestQAScore    *float64       `json:"latest_qa_score,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func toJobResponse(j job.Job) jobResponse {
	return jobResponse{
		JobID: j.ID, Status: j.Status, Instruction: j.Instruction, InputURI: j.InputURI,
		OutputURI: j.OutputURI, Capability: j.Capability, ModelBundle: j.ModelBundle,
		RiskLevel: j.RiskLevel, CurrentIteration: j.CurrentIteration, MaxIterations: j.MaxIterations,
		LatestQAScore: j.LatestQAScore, CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt,
	}
}

type jobListResponse struct {
	Items []jobResponse `json:"items"`
}

type jobEventResponse struct {
	EventID   string         `json:"event_id"`
	JobID     string         `json:"job_id"`
	Stage     string         `json:"stage"`
	Level     job.EventLevel `json:"level"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type artifactManifestResponse struct {
	JobID         string         `json:"job_id"`
	Raw           []string       `json:"raw"`
	Intermediate  []string       `json:"intermediate"`
	Output        []string       `json:"output"`
	Audit         []string       `json:"audit"`
	RetentionDays map[string]int `json:"retention_days"`
}

type qaReportResponse struct {
	JobID           string              `json:"job_id"`
	Iteration       int                 `json:"iteration"`
	OverallScore    float64             `json:"overall_score"`
	DimensionScores job.DimensionScores `json:"dimension_scores"`
	Issues          []job.Issue         `json:"issues"`
	HardFailFlags   []string            `json:"hard_fail_flags"`
	Recommendations []string            `json:"recommendations"`
	CreatedAt       time.Time           `json:"created_at"`
}

type reviewDecisionRequest struct {
	Decision job.ReviewDecision `json:"decision" validate:"required,oneof=approve reject rerun"`
	Reviewer string             `json:"reviewer,omitempty"`
	Reason   string             `json:"reason,omitempty"`
}

type reviewDecisionResponse struct {
	JobID           string             `json:"job_id"`
	Decision        job.ReviewDecision `json:"decision"`
	ResultingStatus job.Status         `json:"resulting_status"`
}

type modelRecommendationRequest struct {
	IncludeDownloadEstimate bool `json:"include_download_estimate"`
}

type modelRecommendationResponse struct {
	Device         modelmanager.DeviceProfile `json:"device"`
	Bundles        []modelmanager.BundleSpec  `json:"bundles"`
	DefaultBundle  string                     `json:"default_bundle"`
	RuntimeMode    string                     `json:"runtime_mode"`
	APIProvider    string                     `json:"api_provider"`
}

type modelInstallRequest struct {
	BundleName string `json:"bundle_name" validate:"required"`
}

type modelInstallResponse struct {
	BundleName  string `json:"bundle_name"`
	Status      string `json:"status"`
	InstallPath string `json:"install_path,omitempty"`
	Message     string `json:"message,omitempty"`
}

type caseSearchRequest struct {
	Query string `json:"query" validate:"required,min=2"`
	TopK  int    `json:"top_k,omitempty" validate:"omitempty,min=1,max=20"`
}

type caseSearchResult struct {
	CaseID        string   `json:"case_id"`
	TaskSummary   string   `json:"task_summary"`
	Tags          []string `json:"tags"`
	FailureReason string   `json:"failure_reason,omitempty"`
	FixStrategy   string   `json:"fix_strategy,omitempty"`
	Score         float64  `json:"score"`
}

type caseSearchResponse struct {
	Query   string             `json:"query"`
	Results []caseSearchResult `json:"results"`
}

type caseResponse struct {
	CaseID        string         `json:"case_id"`
	JobID         string         `json:"job_id,omitempty"`
	TaskSummary   string         `json:"task_summary"`
	Tags          []string       `json:"tags"`
	FailureReason string         `json:"failure_reason,omitempty"`
	FixStrategy   string         `json:"fix_strategy,omitempty"`
	FinalMetrics  map[string]any `json:"final_metrics,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type healthResponse struct {
	Status string    `json:"status"`
	Now    time.Time `json:"now"`
}

type readyResponse struct {
	Status       string               `json:"status"`
	Dependencies []healthDependencyDTO `json:"dependencies"`
	Now          time.Time            `json:"now"`
}

type healthDependencyDTO struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}
