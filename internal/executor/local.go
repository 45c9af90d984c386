package executor

import (
	"context"
	"fmt"

	"github.com/clipforge/editpipeline/internal/clock"
	"github.com/clipforge/editpipeline/internal/errkit"
	"github.com/clipforge/editpipeline/internal/job"
)

// LocalModelSet reports which local model dependencies are installed. The
// real remove_object pipeline (frame extraction, SAM2 segmentation,
// ProPainter inpainting, temporal merge) is out of this core's scope; this
// interface exists so LocalExecutor can fail with
// errkit.ErrExecutorModelNotInstalled without depending on the actual
// runner implementations.
type LocalModelSet interface {
	// Installed reports whether the local models required by capability are
	// present on this host.
	Installed(capability job.Capability) bool
}

// AlwaysInstalled is a LocalModelSet that reports every capability as
// installed, suitable for the core deterministic fixture and for tests.
type AlwaysInstalled struct{}

func (AlwaysInstalled) Installed(job.Capability) bool { return true }

// LocalExecutor runs a capability-specific local tool chain against the
// input artifact. Only remove_object gets a distinct execution note; every
// other capability is a stub copy, since the real per-capability local
// runners are out of scope for the orchestration core.
type LocalExecutor struct {
	Models LocalModelSet
	Clock  clock.Clock
}

func NewLocalExecutor(models LocalModelSet) *LocalExecutor {
	if models == nil {
		models = AlwaysInstalled{}
	}
	return &LocalExecutor{Models: models, Clock: clock.System{}}
}

func (e *LocalExecutor) Execute(_ context.Context, jobID string, iteration int, inputURI, _ string, plan job.EditPlan) (Result, error) {
	if !e.Models.Installed(plan.Capability) {
		return Result{}, errkit.New(errkit.ErrExecutorModelNotInstalled,
			fmt.Sprintf("local models for capability %q are not installed", plan.Capability))
	}

	var notes string
	if plan.Capability == job.CapabilityRemoveObject {
		notes = "Ran remove_object pipeline locally: extract frames, segment/track, inpaint, merge"
	} else {
		notes = fmt.Sprintf("Capability %s executed via local model runner", plan.Capability)
	}

	outputURI := stubOutputURI(jobID, iteration)
	return Result{
		OutputURI: outputURI,
		ExecutionLog: job.ExecutionLog{
			Timestamp:   e.Clock.Now(),
			InputURI:    inputURI,
			OutputURI:   outputURI,
			Capability:  plan.Capability,
			ToolChain:   plan.ToolChain,
			RuntimeMode: "local",
			Provider:    "local_runner",
			Constraints: plan.Constraints,
			Notes:       notes,
		},
	}, nil
}
