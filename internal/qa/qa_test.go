package qa

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/clipforge/editpipeline/internal/job"
)

func TestEvaluateOverallScoreIsRoundedMean(t *testing.T) {
	report := Evaluate(Context{Iteration: 1, Capability: job.CapabilityColorGrade})
	want := roundTo4(report.DimensionScores.Mean())
	if report.OverallScore != want {
		t.Errorf("OverallScore = %f, want %f", report.OverallScore, want)
	}
}

func TestEvaluateImprovesWithIteration(t *testing.T) {
	first := Evaluate(Context{Iteration: 1})
	third := Evaluate(Context{Iteration: 3})
	if third.OverallScore <= first.OverallScore {
		t.Errorf("expected later iterations to score higher: iter1=%f iter3=%f", first.OverallScore, third.OverallScore)
	}
}

func TestEvaluateImprovementCaps(t *testing.T) {
	// improvement = min(0.1, 0.03*(iteration-1)); at iteration 5, 0.03*4=0.12 > 0.1 cap.
	five := Evaluate(Context{Iteration: 5})
	ten := Evaluate(Context{Iteration: 10})
	if five.OverallScore != ten.OverallScore {
		t.Errorf("expected improvement to cap at 0.1, got iter5=%f iter10=%f", five.OverallScore, ten.OverallScore)
	}
}

func TestEvaluateIssuesOnEarlyIteration(t *testing.T) {
	report := Evaluate(Context{Iteration: 1})
	var codes []string
	for _, issue := range report.Issues {
		codes = append(codes, issue.Code)
	}
	if len(codes) != 2 {
		t.Fatalf("expected 2 issues on iteration 1, got %v", codes)
	}
}

func TestShouldPass(t *testing.T) {
	report := job.QAReport{OverallScore: 0.85, HardFailFlags: nil}
	if !ShouldPass(report, 0.82) {
		t.Error("expected report to pass threshold")
	}
	if ShouldPass(report, 0.9) {
		t.Error("expected report to fail a higher threshold")
	}
	failing := job.QAReport{OverallScore: 0.95, HardFailFlags: []string{"safety"}}
	if ShouldPass(failing, 0.5) {
		t.Error("expected hard-fail flag to force failure regardless of score")
	}
}

func TestStableSampleIsDeterministic(t *testing.T) {
	jobID := "job-abc-123"
	first := StableSample(jobID, 0.3)
	second := StableSample(jobID, 0.3)
	if first != second {
		t.Fatal("expected StableSample to be deterministic for the same job id and ratio")
	}
}

func TestStableSampleBoundaryRatios(t *testing.T) {
	if StableSample("any-job", 0) {
		t.Error("ratio=0 should never sample")
	}
	if !StableSample("any-job", 1) {
		t.Error("ratio=1 should always sample")
	}
}

func TestStableSampleMatchesReferenceAlgorithm(t *testing.T) {
	jobID := "reference-check-job"
	digest := sha256.Sum256([]byte(jobID))
	expectedSample := float64(binary.BigEndian.Uint64(digest[:8])) / math.Pow(2, 64)
	got := StableSample(jobID, expectedSample+0.0001)
	if !got {
		t.Fatal("expected ratio just above the computed sample value to sample")
	}
	got = StableSample(jobID, math.Max(0, expectedSample-0.0001))
	if expectedSample > 0.0001 && got {
		t.Fatal("expected ratio just below the computed sample value not to sample")
	}
}

func TestStableSampleEmpiricalRateWithinTolerance(t *testing.T) {
	for _, ratio := range []float64{0.1, 0.2, 0.5} {
		hits := 0
		const n = 10000
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("job-%d", i)
			if StableSample(id, ratio) {
				hits++
			}
		}
		rate := float64(hits) / n
		if math.Abs(rate-ratio) > 0.02 {
			t.Errorf("ratio=%.2f empirical rate %.4f deviates by more than 2pp", ratio, rate)
		}
	}
}

func TestShouldRouteManualReviewHighRisk(t *testing.T) {
	report := job.QAReport{OverallScore: 0.9}
	route, reasons := ShouldRouteManualReview("job-1", report, 0.82, job.RiskHigh, 0)
	if !route {
		t.Fatal("expected high risk to route to manual review")
	}
	if len(reasons) != 1 || reasons[0] != "high_risk_task_requires_manual_review" {
		t.Errorf("unexpected reasons: %v", reasons)
	}
}

func TestShouldRouteManualReviewSkippedWhenNotPassing(t *testing.T) {
	report := job.QAReport{OverallScore: 0.5}
	route, reasons := ShouldRouteManualReview("job-1", report, 0.82, job.RiskHigh, 1)
	if route || len(reasons) != 0 {
		t.Errorf("expected no routing decision for a failing report, got route=%v reasons=%v", route, reasons)
	}
}
