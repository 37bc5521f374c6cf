package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
)

// SubmitDetectionHandler ingests a camera detection. With ?async=true the
// submission is queued and 202 is returned; otherwise the outcome is returned
// once the detection is merged into or turned into a report.
func SubmitDetectionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var sub ports.DetectionSubmission
		if err := c.BodyParser(&sub); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if sub.CameraID == "" {
			return errBadRequest(c, "camera_id is required")
		}
		// Fixed cameras may omit the location; use the registered one.
		if sub.Location == nil && deps.Cameras != nil {
			if cam, err := deps.Cameras.Get(sub.CameraID); err == nil {
				sub.Location = cam.Location
			}
		}

		if c.QueryBool("async") {
			if deps.Queue == nil {
				return errUnavailable(c, "asynchronous ingestion is not configured")
			}
			if err := deps.Queue.SubmitDetection(c.UserContext(), &sub); err != nil {
				LoggerFromCtx(c.UserContext()).Error("queue detection failed", "camera_id", sub.CameraID, "error", err)
				return errUnavailable(c, "detection queue unavailable")
			}
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued"})
		}

		outcome, err := deps.Detections.Ingest(c.UserContext(), &sub)
		if err != nil {
			return errFromService(c, err, "")
		}
		status := fiber.StatusOK
		if outcome.Report != nil && !outcome.Merged {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(outcome)
	}
}

// RecentDetectionsHandler returns the latest detections, newest first.
func RecentDetectionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		detections, err := deps.Detections.Recent(c.UserContext(), c.QueryInt("limit", 50))
		if err != nil {
			return errFromService(c, err, "")
		}
		if detections == nil {
			detections = []domain.Detection{}
		}
		return c.JSON(fiber.Map{"detections": detections, "count": len(detections)})
	}
}

type registerCameraRequest struct {
	ID       string           `json:"id"`
	IP       string           `json:"ip"`
	Port     int              `json:"port"`
	Location *domain.GeoPoint `json:"location"`
}

// RegisterCameraHandler registers or re-registers a camera.
func RegisterCameraHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerCameraRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		cam, err := deps.Cameras.Register(c.UserContext(), req.ID, req.IP, req.Port, req.Location)
		if err != nil {
			return errFromService(c, err, "")
		}
		return c.Status(fiber.StatusCreated).JSON(cam)
	}
}

// ListCamerasHandler returns every registered camera.
func ListCamerasHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cams := deps.Cameras.List()
		return c.JSON(fiber.Map{"cameras": cams, "count": len(cams)})
	}
}

// GetCameraHandler returns one camera.
func GetCameraHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cam, err := deps.Cameras.Get(c.Params("id"))
		if err != nil {
			return errFromService(c, err, "camera not found")
		}
		return c.JSON(cam)
	}
}

// DeleteCameraHandler unregisters a camera.
func DeleteCameraHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Cameras.Remove(c.UserContext(), c.Params("id")); err != nil {
			return errFromService(c, err, "camera not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// CameraStreamHandler starts or stops a camera stream.
// Body: {"action": "start"|"stop"}
func CameraStreamHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Action string `json:"action"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		var streaming bool
		switch req.Action {
		case "start":
			streaming = true
		case "stop":
		default:
			return errBadRequest(c, fmt.Sprintf("action must be start or stop, got %q", req.Action))
		}

		cam, err := deps.Cameras.SetStreaming(c.UserContext(), c.Params("id"), streaming)
		if err != nil {
			return errFromService(c, err, "camera not found")
		}
		return c.JSON(cam)
	}
}
