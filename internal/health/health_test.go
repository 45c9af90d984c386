package health

import (
	"context"
	"errors"
	"testing"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubEngine struct{ ready bool }

func (e stubEngine) Ready(context.Context) bool { return e.ready }

func TestReady_AllNilDependenciesReportOverallHealthy(t *testing.T) {
	overall, deps := Checker{}.Ready(context.Background())
	if !overall {
		t.Errorf("expected overall healthy when no dependencies are configured")
	}
	if len(deps) != 0 {
		t.Errorf("expected no dependency entries when none are configured, got %#v", deps)
	}
}

func TestReady_UnconfiguredDependencyIsNotReportedAsFailing(t *testing.T) {
	overall, deps := Checker{Database: stubPinger{}}.Ready(context.Background())
	if !overall {
		t.Errorf("expected overall healthy with a passing database ping")
	}
	if len(deps) != 1 || deps[0].Name != "database" || !deps[0].OK {
		t.Fatalf("expected only the configured database dependency to be reported, got %#v", deps)
	}
}

func TestReady_FailingPingerDegradesOverall(t *testing.T) {
	overall, deps := Checker{Database: stubPinger{err: errors.New("connection refused")}}.Ready(context.Background())
	if overall {
		t.Errorf("expected overall degraded when a configured dependency fails")
	}
	if len(deps) != 1 || deps[0].OK || deps[0].Detail == "" {
		t.Fatalf("expected a failing database dependency with detail, got %#v", deps)
	}
}

func TestReady_EngineUnreadyDegradesOverall(t *testing.T) {
	overall, deps := Checker{Engine: stubEngine{ready: false}}.Ready(context.Background())
	if overall {
		t.Errorf("expected overall degraded when the workflow engine is not ready")
	}
	if len(deps) != 1 || deps[0].Name != "workflow_engine" || deps[0].OK {
		t.Fatalf("expected a failing workflow_engine dependency, got %#v", deps)
	}
}

func TestReady_AllDependenciesHealthy(t *testing.T) {
	overall, deps := Checker{
		Database:      stubPinger{},
		KnowledgeBase: stubPinger{},
		ArtifactStore: stubPinger{},
		Engine:        stubEngine{ready: true},
	}.Ready(context.Background())
	if !overall {
		t.Errorf("expected overall healthy when every dependency passes")
	}
	if len(deps) != 4 {
		t.Fatalf("expected all 4 dependencies reported, got %d", len(deps))
	}
}
