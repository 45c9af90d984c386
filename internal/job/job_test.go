package job

import (
	"math"
	"testing"
)

func TestCanTransitionAllowedPaths(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusPlanning, true},
		{StatusQueued, StatusBlocked, true},
		{StatusQueued, StatusFailed, true},
		{StatusQueued, StatusEditing, false},
		{StatusPlanning, StatusEditing, true},
		{StatusPlanning, StatusQA, false},
		{StatusEditing, StatusQA, true},
		{StatusQA, StatusPlanning, true},
		{StatusQA, StatusSucceeded, true},
		{StatusQA, StatusHumanReview, true},
		{StatusQA, StatusQueued, false},
		{StatusHumanReview, StatusSucceeded, true},
		{StatusHumanReview, StatusQueued, true},
		{StatusHumanReview, StatusPlanning, false},
		{StatusFailed, StatusQueued, true},
		{StatusFailed, StatusPlanning, false},
		{StatusSucceeded, StatusQueued, false},
		{StatusBlocked, StatusQueued, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCanTransitionSameStatusIsNoop(t *testing.T) {
	if !CanTransition(StatusQA, StatusQA) {
		t.Error("expected same-status transition to be a permitted no-op")
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []Status{StatusSucceeded, StatusFailed, StatusBlocked, StatusHumanReview}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	nonTerminal := []Status{StatusQueued, StatusPlanning, StatusEditing, StatusQA}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestMetadataAccessors(t *testing.T) {
	m := Metadata{
		MetaCallbackURL:    "https://example.com/hook",
		MetaAdminOverride:  true,
		MetaOverrideReason: "approved for internal benchmark",
	}
	if m.CallbackURL() != "https://example.com/hook" {
		t.Errorf("unexpected callback url: %s", m.CallbackURL())
	}
	if !m.AdminOverrideRequested() {
		t.Error("expected admin override requested")
	}
	if m.OverrideReason() != "approved for internal benchmark" {
		t.Errorf("unexpected override reason: %s", m.OverrideReason())
	}
}

func TestMetadataAccessorsOnEmptyMap(t *testing.T) {
	var m Metadata
	if m.CallbackURL() != "" {
		t.Error("expected empty callback url on nil metadata")
	}
	if m.AdminOverrideRequested() {
		t.Error("expected no override on nil metadata")
	}
}

func TestDimensionScoresMean(t *testing.T) {
	d := DimensionScores{
		InstructionAdherence: 0.8,
		TemporalConsistency:  0.8,
		VisualArtifacts:      0.8,
		EditRegionAccuracy:   0.8,
		SafetyCompliance:     0.99,
	}
	got := d.Mean()
	want := (0.8 + 0.8 + 0.8 + 0.8 + 0.99) / 5
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Mean() = %f, want %f", got, want)
	}
}
