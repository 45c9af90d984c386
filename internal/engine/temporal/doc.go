// Package temporal implements the WorkflowRuntime engine adapter backed by
// Temporal (https://temporal.io). It satisfies the generic engine.Engine
// interface so the edit-job orchestrator can run as a durable Temporal
// workflow without importing the Temporal SDK outside this package.
//
// # Why Temporal?
//
// An edit job's plan/execute/QA loop can span remote model calls lasting
// minutes and a human-review pause lasting hours or days. Temporal ensures
// that state survives process restarts, network failures, and worker
// crashes by replaying the workflow from its event history rather than
// holding progress only in process memory.
//
// # Constructing an Engine
//
// Use New to create an engine with Temporal client and worker options:
//
//	eng, err := temporal.New(temporal.Options{
//	    ClientOptions: &client.Options{
//	        HostPort:  "temporal:7233",
//	        Namespace: "default",
//	    },
//	    WorkerOptions: temporal.WorkerOptions{
//	        TaskQueue: "editpipeline.jobs",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
// # Worker vs Client Mode
//
// The same engine can operate in two modes:
//
//   - Worker mode: polls task queues and executes the orchestrator workflow
//     and its activities locally. Used by the worker process.
//   - Client mode: submits workflows without local execution. Used by the
//     HTTP API process to start and signal jobs without running them.
//
// Both modes use the same Options; the difference is whether
// RegisterWorkflow/RegisterActivity are called for a given process.
//
// # Workflow Determinism
//
// The orchestrator workflow must be deterministic: given the same inputs and
// event history, it must produce the same sequence of activity calls. This
// package exposes only deterministic operations through WorkflowContext:
// Now() returns workflow time (not wall clock), and ExecuteActivity/
// ExecuteActivityAsync/SignalChannel are all replay-safe. Side effects
// (HTTP calls to the remote executor, database writes, callback delivery)
// live exclusively in activities.
//
// # OpenTelemetry Integration
//
// The engine installs OTEL interceptors on the Temporal client and workers
// automatically, propagating trace context across the workflow/activity
// boundary. No additional configuration is required beyond providing a
// Tracer in Options.
package temporal
