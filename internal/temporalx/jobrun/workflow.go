package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/workflow"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
)

const (
	pollInterval         = 2 * time.Second
	continueTickLimit    = 2000
	continueHistoryLimit = 15000
)

// Workflow ticks the job_run whose id is the workflow id until it reaches a terminal status.
// A failed job fails the workflow so the start options' retry policy applies.
func Workflow(ctx workflow.Context) error {
	jobID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if jobID == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    30 * time.Second,
		// Retries happen at the workflow level.
		RetryPolicy: nil,
	})

	for ticks := 1; ; ticks++ {
		var out TickResult
		if err := workflow.ExecuteActivity(ctx, ActivityTick, jobID).Get(ctx, &out); err != nil {
			return err
		}

		switch strings.ToLower(strings.TrimSpace(out.Status)) {
		case types.JobStatusSucceeded, types.JobStatusCanceled:
			return nil
		case types.JobStatusFailed:
			return fmt.Errorf("job failed (stage=%s): %s", strings.TrimSpace(out.Stage), out.Error)
		}

		if err := workflow.Sleep(ctx, pollInterval); err != nil {
			return err
		}
		if shouldContinueAsNew(ctx, ticks) {
			return workflow.NewContinueAsNewError(ctx, Workflow)
		}
	}
}

func shouldContinueAsNew(ctx workflow.Context, ticks int) bool {
	if ticks >= continueTickLimit {
		return true
	}
	info := workflow.GetInfo(ctx)
	return info != nil && info.GetCurrentHistoryLength() >= continueHistoryLimit
}
