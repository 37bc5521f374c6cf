package workflows

import (
	"context"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
	"github.com/samirrijal/roadwatch/internal/core/usecases"
)

// DetectionActivities holds the activity implementations for the detection workflow.
type DetectionActivities struct {
	Detections *usecases.DetectionService
}

// Classify returns the observation to record, or nil when the submission is
// below the confidence threshold or shows a normal road.
func (a *DetectionActivities) Classify(ctx context.Context, sub ports.DetectionSubmission) (*domain.DefectObservation, error) {
	obs, err := a.Detections.Classify(ctx, &sub)
	return obs, nonRetryable(err)
}

// Record persists the classified detection.
func (a *DetectionActivities) Record(ctx context.Context, sub ports.DetectionSubmission, obs domain.DefectObservation) (*domain.Detection, error) {
	return a.Detections.Record(ctx, &sub, &obs)
}

// Resolve merges the detection into a nearby report or creates a new one.
func (a *DetectionActivities) Resolve(ctx context.Context, det domain.Detection) (*usecases.Resolution, error) {
	res, err := a.Detections.Resolve(ctx, &det)
	return res, nonRetryable(err)
}

// Announce publishes the detection and report events.
func (a *DetectionActivities) Announce(ctx context.Context, det domain.Detection, res usecases.Resolution) error {
	return a.Detections.Announce(ctx, &det, &res)
}

// Discard deletes a recorded detection (saga compensation).
func (a *DetectionActivities) Discard(ctx context.Context, detectionID string) error {
	if err := a.Detections.Discard(ctx, detectionID); err != nil {
		return err
	}
	slog.InfoContext(ctx, "detection discarded", "detection_id", detectionID)
	return nil
}

// nonRetryable stops Temporal from retrying errors caused by bad input.
func nonRetryable(err error) error {
	if err != nil && domain.IsInvalidInput(err) {
		return temporal.NewNonRetryableApplicationError(err.Error(), "InvalidInput", err)
	}
	return err
}
