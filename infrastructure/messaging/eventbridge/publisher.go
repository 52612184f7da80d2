// Package eventbridge forwards the engine's domain events to an EventBridge
// bus so downstream pipeline stages (exports, recalibration jobs) can react.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"phenotag-backend/application/ports"
	"phenotag-backend/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

const eventSource = "phenotag.annotation-engine"

// Publisher implements the EventPublisher port on EventBridge
type Publisher struct {
	client  *eventbridge.Client
	busName string
	logger  *zap.Logger
}

// NewPublisher creates an EventBridge publisher
func NewPublisher(client *eventbridge.Client, busName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:  client,
		busName: busName,
		logger:  logger,
	}
}

var _ ports.EventPublisher = (*Publisher)(nil)

// Publish sends one domain event to the bus
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.GetEventType(), err)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(eventSource),
				DetailType:   aws.String(event.GetEventType()),
				Detail:       aws.String(string(detail)),
				Time:         aws.Time(event.GetTimestamp()),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put event %s: %w", event.GetEventType(), err)
	}
	if out.FailedEntryCount > 0 {
		return fmt.Errorf("put event %s: %d entries failed", event.GetEventType(), out.FailedEntryCount)
	}

	p.logger.Debug("domain event published",
		zap.String("eventType", event.GetEventType()),
		zap.String("bus", p.busName),
	)
	return nil
}

// AttachTo subscribes the publisher to an in-process emitter so every emitted
// domain event is forwarded to the bus. Returns the unsubscribe function.
func (p *Publisher) AttachTo(emitter *events.Emitter) func() {
	return emitter.Subscribe(func(ctx context.Context, event events.DomainEvent) error {
		return p.Publish(ctx, event)
	})
}
