// Package qa implements the QAEvaluator: a deterministic scoring fixture
// over an iteration, the pass/fail gate, and the manual-review routing
// decision (risk-based plus stable random sampling).
package qa

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"

	"github.com/clipforge/editpipeline/internal/job"
)

// Context carries the inputs the core's deterministic QA fixture scores
// on. A production QA model would replace baseScores with a real
// evaluation while keeping ShouldPass/ShouldRouteManualReview's contract
// unchanged.
type Context struct {
	Instruction string
	Iteration   int
	Capability  job.Capability
	OutputURI   string
}

func baseScores(iteration int) job.DimensionScores {
	improvement := math.Min(0.1, 0.03*math.Max(0, float64(iteration-1)))
	return job.DimensionScores{
		InstructionAdherence: 0.74 + improvement,
		TemporalConsistency:  0.75 + improvement,
		VisualArtifacts:      0.78 + improvement,
		EditRegionAccuracy:   0.76 + improvement,
		SafetyCompliance:     0.99,
	}
}

// Evaluate scores one iteration's output on the fixed dimensions and
// derives issues, hard-fail flags, and recommendations.
func Evaluate(ctx Context) job.QAReport {
	scores := baseScores(ctx.Iteration)

	var issues []job.Issue
	var recommendations []string

	if scores.TemporalConsistency < 0.8 {
		issues = append(issues, job.Issue{
			Code:        "temporal_flicker",
			Severity:    "medium",
			Description: "Noticeable frame-to-frame flicker in edited region",
			Timeline:    "00:00:02-00:00:06",
		})
		recommendations = append(recommendations, "Increase temporal smoothing and tracking confidence")
	}

	if scores.InstructionAdherence < 0.82 {
		issues = append(issues, job.Issue{
			Code:        "instruction_partial_match",
			Severity:    "medium",
			Description: "Edit result only partially matches the instruction",
			Timeline:    "00:00:01-00:00:10",
		})
		recommendations = append(recommendations, "Tighten edit mask scope and object consistency constraints")
	}

	overall := roundTo4(scores.Mean())

	var hardFailFlags []string
	if scores.SafetyCompliance < 0.9 {
		hardFailFlags = append(hardFailFlags, "safety")
	}
	if scores.VisualArtifacts < 0.65 {
		hardFailFlags = append(hardFailFlags, "severe_artifacts")
	}

	return job.QAReport{
		Iteration:       ctx.Iteration,
		OverallScore:    overall,
		DimensionScores: scores,
		Issues:          issues,
		HardFailFlags:   hardFailFlags,
		Recommendations: recommendations,
	}
}

func roundTo4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// ShouldPass reports whether a QAReport clears the configured threshold
// with no hard-fail flags.
func ShouldPass(report job.QAReport, threshold float64) bool {
	return report.OverallScore >= threshold && len(report.HardFailFlags) == 0
}

// StableSample is a deterministic per-job Bernoulli draw: the first 8
// bytes of SHA-256(jobID), interpreted as an unsigned big-endian 64-bit
// integer and divided by 2^64, compared against ratio. It returns the
// same value for the same (jobID, ratio) pair every time, making
// manual-review routing idempotent across reruns.
func StableSample(jobID string, ratio float64) bool {
	bounded := math.Max(0, math.Min(1, ratio))
	if bounded <= 0 {
		return false
	}
	if bounded >= 1 {
		return true
	}
	digest := sha256.Sum256([]byte(jobID))
	sample := float64(binary.BigEndian.Uint64(digest[:8])) / float64(1<<64)
	return sample < bounded
}

// ShouldRouteManualReview decides whether a QAReport should be routed to a
// human reviewer, and why. Routing is only evaluated for reports that
// already pass threshold; a failing report returns (false, nil) and
// continues the replan loop instead.
func ShouldRouteManualReview(jobID string, report job.QAReport, threshold float64, riskLevel job.RiskLevel, randomReviewRatio float64) (bool, []string) {
	if !ShouldPass(report, threshold) {
		return false, nil
	}

	var reasons []string
	if strings.EqualFold(string(riskLevel), "high") {
		reasons = append(reasons, "high_risk_task_requires_manual_review")
	}
	if StableSample(jobID, randomReviewRatio) {
		reasons = append(reasons, "random_spot_check")
	}
	return len(reasons) > 0, reasons
}
