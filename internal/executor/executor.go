// Package executor implements the EditExecutor contract: given an EditPlan
// and an input artifact, produce an output URI and an execution log. Two
// implementations exist behind the same interface, selected by
// config.RuntimeMode — RemoteExecutor calls a hosted model API over HTTP;
// LocalExecutor runs a capability-specific local tool chain.
package executor

import (
	"context"
	"fmt"

	"github.com/clipforge/editpipeline/internal/job"
)

// Result is what an EditExecutor returns for one iteration.
type Result struct {
	OutputURI    string
	ExecutionLog job.ExecutionLog
}

// EditExecutor executes one EditPlan against an input artifact. It never
// mutates Job status; it only returns a result or an error.
type EditExecutor interface {
	Execute(ctx context.Context, jobID string, iteration int, inputURI, instruction string, plan job.EditPlan) (Result, error)
}

func stubOutputURI(jobID string, iteration int) string {
	return fmt.Sprintf("minio://output/%s/iter_%d/edited.mp4", jobID, iteration)
}
