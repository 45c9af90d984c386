package safety

import (
	"testing"

	"github.com/clipforge/editpipeline/internal/job"
)

func TestEvaluateAllowsCleanInstruction(t *testing.T) {
	result := Evaluate("Change color grading to cinematic look", false, "", nil, nil)
	if !result.Allowed {
		t.Fatal("expected clean instruction to be allowed")
	}
	if len(result.BlockedRules) != 0 {
		t.Errorf("expected no blocked rules, got %v", result.BlockedRules)
	}
	if result.OverrideApplied {
		t.Error("expected no override applied")
	}
}

func TestEvaluateBlocksFaceSwap(t *testing.T) {
	result := Evaluate("Do a celebrity face swap deepfake", false, "", nil, nil)
	if result.Allowed {
		t.Fatal("expected blocked instruction")
	}
	found := false
	for _, r := range result.BlockedRules {
		if r == "high_risk_face_swap" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected high_risk_face_swap in blocked rules, got %v", result.BlockedRules)
	}
}

func TestEvaluateOverrideRequiresAllSignals(t *testing.T) {
	instruction := "Do a celebrity face swap deepfake"

	// Missing override reason.
	r := Evaluate(instruction, true, "", []string{"high_risk_face_swap"}, nil)
	if r.Allowed {
		t.Error("expected override without reason to stay blocked")
	}

	// Reason too-short-looking is still fine here (length enforced at API
	// boundary); but empty/whitespace reason must not satisfy override.
	r = Evaluate(instruction, true, "   ", []string{"high_risk_face_swap"}, nil)
	if r.Allowed {
		t.Error("expected override with blank reason to stay blocked")
	}

	// Rule not in allow-list.
	r = Evaluate(instruction, true, "approved for internal benchmark", []string{"explicit_violence"}, nil)
	if r.Allowed {
		t.Error("expected override to fail when matched rule is outside allow-list")
	}

	// Fully valid override.
	r = Evaluate(instruction, true, "approved for internal benchmark", []string{"high_risk_face_swap"}, nil)
	if !r.Allowed || !r.OverrideApplied {
		t.Errorf("expected valid override to allow and flag override_applied, got %#v", r)
	}
}

func TestClassifyRiskLevels(t *testing.T) {
	if got := ClassifyRisk("edit a video for a politician", nil); got != job.RiskHigh {
		t.Errorf("expected high risk, got %s", got)
	}
	if got := ClassifyRisk("remove the logo from the shirt", nil); got != job.RiskMedium {
		t.Errorf("expected medium risk, got %s", got)
	}
	if got := ClassifyRisk("change color grading", nil); got != job.RiskLow {
		t.Errorf("expected low risk, got %s", got)
	}
}

func TestClassifyRiskHonorsConfiguredKeywords(t *testing.T) {
	if got := ClassifyRisk("edit my cat video", []string{"cat"}); got != job.RiskHigh {
		t.Errorf("expected configured keyword to raise risk to high, got %s", got)
	}
}
