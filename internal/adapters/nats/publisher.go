package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
)

// Subjects carrying roadwatch events.
const (
	SubjectReportCreated      = "reports.created"
	SubjectReportUpdated      = "reports.updated"
	SubjectDetectionNew       = "detections.new"
	SubjectDetectionSubmitted = "detections.submitted"
	SubjectMapUpdate          = "map.update"
	SubjectCameraStream       = "cameras.stream"
)

// Event types carried in Envelope.Type.
const (
	EventNewReport          = "new_report"
	EventReportUpdated      = "report_updated"
	EventNewDetection       = "new_detection"
	EventMapUpdate          = "map_update"
	EventCameraStream       = "camera_stream"
	EventDetectionSubmitted = "detection_submitted"
)

// Envelope is the JSON body of every message: {"type": ..., "data": ...}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func encode(eventType string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Data: data})
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := EnsureStreams(js); err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

// EnsureStreams creates or updates the JetStream streams.
func EnsureStreams(js nats.JetStreamManager) error {
	streams := []nats.StreamConfig{
		{
			Name:      "REPORTS",
			Subjects:  []string{"reports.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "DETECTION_SUBMISSIONS",
			Subjects:  []string{SubjectDetectionSubmitted},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "DETECTIONS",
			Subjects:  []string{SubjectDetectionNew},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, subject, eventType string, v any) error {
	data, err := encode(eventType, v)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishReportCreated(ctx context.Context, r *domain.Report) error {
	return p.publish(ctx, SubjectReportCreated, EventNewReport, r)
}

func (p *Publisher) PublishReportUpdated(ctx context.Context, r *domain.Report) error {
	return p.publish(ctx, SubjectReportUpdated, EventReportUpdated, r)
}

func (p *Publisher) PublishDetection(ctx context.Context, d *domain.Detection) error {
	return p.publish(ctx, SubjectDetectionNew, EventNewDetection, d)
}

// SubmitDetection queues a raw submission for the detection consumer.
func (p *Publisher) SubmitDetection(ctx context.Context, sub *ports.DetectionSubmission) error {
	return p.publish(ctx, SubjectDetectionSubmitted, EventDetectionSubmitted, sub)
}

// MapUpdate is the payload of a map.update message.
type MapUpdate struct {
	Action string         `json:"action"`
	Report *domain.Report `json:"report"`
}

// PublishMapUpdate is fire-and-forget; map clients only care about live changes.
func (p *Publisher) PublishMapUpdate(_ context.Context, kind string, r *domain.Report) error {
	data, err := encode(EventMapUpdate, MapUpdate{Action: kind, Report: r})
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectMapUpdate, data)
}

func (p *Publisher) PublishCameraStream(_ context.Context, cam *domain.Camera) error {
	data, err := encode(EventCameraStream, cam)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectCameraStream, data)
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
