package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/core/usecases"
)

// DefaultTaskQueue is used when no task queue is configured.
const DefaultTaskQueue = "roadwatch-detections"

// DetectionInput is the input for the detection workflow.
type DetectionInput struct {
	Submission ports.DetectionSubmission
}

// DetectionWorkflow classifies a camera submission, records it, and merges it
// into a nearby report or opens a new one. If resolving fails the recorded
// detection is discarded (saga compensation). A failed announcement is logged
// but does not fail the workflow.
func DetectionWorkflow(ctx workflow.Context, input DetectionInput) (*usecases.DetectionOutcome, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting detection workflow", "cameraID", input.Submission.CameraID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Classify
	var obs *domain.DefectObservation
	if err := workflow.ExecuteActivity(ctx, "Classify", input.Submission).Get(ctx, &obs); err != nil {
		return nil, err
	}
	if obs == nil {
		logger.Info("Detection ignored", "cameraID", input.Submission.CameraID)
		return &usecases.DetectionOutcome{Ignored: true}, nil
	}

	// Step 2: Record
	var det domain.Detection
	if err := workflow.ExecuteActivity(ctx, "Record", input.Submission, *obs).Get(ctx, &det); err != nil {
		return nil, err
	}

	// Step 3: Merge or create
	var res usecases.Resolution
	if err := workflow.ExecuteActivity(ctx, "Resolve", det).Get(ctx, &res); err != nil {
		logger.Warn("resolve failed, compensating", "error", err)
		_ = workflow.ExecuteActivity(ctx, "Discard", det.ID).Get(ctx, nil)
		return nil, err
	}
	det.ReportID = res.Report.ID

	// Step 4: Announce
	if err := workflow.ExecuteActivity(ctx, "Announce", det, res).Get(ctx, nil); err != nil {
		logger.Warn("announce failed", "detectionID", det.ID, "error", err)
	}

	logger.Info("Detection resolved", "reportID", res.Report.ID, "merged", res.Merged)
	return &usecases.DetectionOutcome{Detection: &det, Report: res.Report, Merged: res.Merged}, nil
}
