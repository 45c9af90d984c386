// Package health implements the liveness/readiness checks behind GET
// /health and GET /health/ready: database, knowledge-base, workflow
// engine, and artifact-store dependency probes, aggregated into one
// readiness verdict.
package health

import (
	"context"
)

// Dependency reports one check's outcome.
type Dependency struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Pinger is satisfied by store.Store (and the knowledge-base/artifact-store
// stand-ins) for a minimal reachability probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EngineChecker reports whether a workflow engine connection is currently
// usable, for the Temporal readiness probe.
type EngineChecker interface {
	Ready(ctx context.Context) bool
}

// Checker aggregates the dependency probes behind /health/ready. Any field
// left nil is skipped (not reported as failing), so a deployment without a
// configured dependency (e.g. no artifact store) doesn't spuriously
// degrade.
type Checker struct {
	Database      Pinger
	KnowledgeBase Pinger
	ArtifactStore Pinger
	Engine        EngineChecker
}

// Ready runs every configured dependency check and returns the aggregate
// result plus per-dependency detail. overall is false if any configured
// dependency reports unhealthy.
func (c Checker) Ready(ctx context.Context) (overall bool, deps []Dependency) {
	overall = true

	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		dep := Dependency{Name: name, OK: true}
		if err := p.Ping(ctx); err != nil {
			dep.OK = false
			dep.Detail = err.Error()
			overall = false
		}
		deps = append(deps, dep)
	}

	check("database", c.Database)
	check("knowledge_base", c.KnowledgeBase)
	check("artifact_store", c.ArtifactStore)

	if c.Engine != nil {
		ok := c.Engine.Ready(ctx)
		dep := Dependency{Name: "workflow_engine", OK: ok}
		if !ok {
			dep.Detail = "workflow engine unavailable"
			overall = false
		}
		deps = append(deps, dep)
	}

	return overall, deps
}
