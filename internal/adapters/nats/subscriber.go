package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/ports"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
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
	return &Subscriber{conn: conn, js: js}, nil
}

// decode unwraps an Envelope into dst.
func decode(raw []byte, dst any) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("decode envelope: empty data for %q", env.Type)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return nil
}

// handle acks on success. Malformed messages are terminated so they are not
// redelivered; handler failures are nak'ed for a retry.
func handle[T any](ctx context.Context, subject string, handler func(context.Context, *T) error) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var v T
		if err := decode(msg.Data, &v); err != nil {
			slog.WarnContext(ctx, "dropping malformed message", "subject", subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &v); err != nil {
			slog.ErrorContext(ctx, "message handler failed", "subject", subject, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}
}

func (s *Subscriber) SubscribeDetectionSubmissions(ctx context.Context, handler func(ctx context.Context, sub *ports.DetectionSubmission) error) error {
	sub, err := s.js.Subscribe(SubjectDetectionSubmitted, handle(ctx, SubjectDetectionSubmitted, handler),
		nats.Durable("detection-ingestor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeReportCreated follows new reports from now on. The consumer is
// ephemeral so every process keeping a candidate index sees every report.
func (s *Subscriber) SubscribeReportCreated(ctx context.Context, handler func(ctx context.Context, report *domain.Report) error) error {
	sub, err := s.js.Subscribe(SubjectReportCreated, handle(ctx, SubjectReportCreated, handler),
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
