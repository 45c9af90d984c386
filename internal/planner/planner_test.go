package planner

import (
	"testing"

	"github.com/clipforge/editpipeline/internal/job"
)

func TestDetectCapabilityForcedWins(t *testing.T) {
	got := DetectCapability("remove the logo", job.CapabilityStylize)
	if got != job.CapabilityStylize {
		t.Errorf("expected forced capability to win, got %s", got)
	}
}

func TestDetectCapabilityLogoShortcut(t *testing.T) {
	got := DetectCapability("remove the logo from the shirt and also apply a stylize aesthetic look", "")
	if got != job.CapabilityRemoveLogo {
		t.Errorf("expected logo shortcut to take priority, got %s", got)
	}
}

func TestDetectCapabilityScoring(t *testing.T) {
	got := DetectCapability("apply a cinematic color grading look", "")
	if got != job.CapabilityColorGrade {
		t.Errorf("expected color_grade, got %s", got)
	}
}

func TestDetectCapabilityDefaultsWhenNoMatch(t *testing.T) {
	got := DetectCapability("make it look professional somehow", "")
	if got != job.CapabilityReplaceObject {
		t.Errorf("expected default replace_object, got %s", got)
	}
}

func TestBuildFixMapEmptyOnNoPriorIssues(t *testing.T) {
	got := BuildFixMap(nil)
	if len(got) != 0 {
		t.Errorf("expected empty fix map, got %#v", got)
	}
}

func TestBuildFixMapTranslatesIssues(t *testing.T) {
	issues := []job.Issue{
		{Code: "temporal_flicker", Description: "reduce flicker between frames"},
	}
	got := BuildFixMap(issues)
	if len(got) != 1 {
		t.Fatalf("expected 1 fix map entry, got %d", len(got))
	}
	if got[0].FixPoint != "temporal_flicker" {
		t.Errorf("unexpected fix point: %s", got[0].FixPoint)
	}
	if got[0].ToolAction != "adjust_pipeline_for_temporal_flicker" {
		t.Errorf("unexpected tool action: %s", got[0].ToolAction)
	}
	if got[0].ExpectedImprovement != "reduce flicker between frames" {
		t.Errorf("unexpected expected improvement: %s", got[0].ExpectedImprovement)
	}
}

func TestGeneratePlanIsPureAndDeterministic(t *testing.T) {
	p1 := GeneratePlan("remove the logo from the shirt", "bundle-a", nil, "", 3)
	p2 := GeneratePlan("remove the logo from the shirt", "bundle-a", nil, "", 3)
	if p1.Capability != p2.Capability || p1.ModelBundle != p2.ModelBundle {
		t.Fatal("expected GeneratePlan to be a pure function of its inputs")
	}
	if p1.Constraints.MaxResolution != "1920x1080" || p1.Constraints.MaxDurationSeconds != 30 {
		t.Errorf("unexpected constraints: %#v", p1.Constraints)
	}
	if len(p1.ToolChain) == 0 {
		t.Error("expected a non-empty tool chain")
	}
}
