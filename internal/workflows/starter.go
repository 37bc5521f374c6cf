package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/roadwatch/internal/core/ports"
)

// Starter queues detection submissions as Temporal workflow executions.
// It implements ports.DetectionQueue.
type Starter struct {
	client    client.Client
	taskQueue string
}

func NewStarter(c client.Client, taskQueue string) *Starter {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Starter{client: c, taskQueue: taskQueue}
}

// SubmitDetection starts a DetectionWorkflow for sub without waiting for it.
func (s *Starter) SubmitDetection(ctx context.Context, sub *ports.DetectionSubmission) error {
	opts := client.StartWorkflowOptions{
		ID:        "detection-" + uuid.NewString(),
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, DetectionWorkflow, DetectionInput{Submission: *sub})
	if err != nil {
		return fmt.Errorf("start detection workflow: %w", err)
	}
	slog.DebugContext(ctx, "detection workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}
