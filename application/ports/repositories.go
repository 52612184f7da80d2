package ports

import (
	"context"

	"phenotag-backend/domain/core/entities"
	"phenotag-backend/domain/events"
)

// AnnotationStore defines the interface for per-image annotation persistence.
// This is a port in hexagonal architecture - the engine doesn't know about the
// implementation. One document is stored per image.
type AnnotationStore interface {
	// Get retrieves the annotation set for an image, or (nil, nil) if the
	// image has never been annotated. Transport failures surface as
	// store-unavailable errors.
	Get(ctx context.Context, imageID string) (*entities.AnnotationSet, error)

	// Save replaces the annotation set for an image wholesale. Failures
	// surface as store-unavailable or store-rejected errors.
	Save(ctx context.Context, imageID string, set entities.AnnotationSet) error
}

// SequenceReader exposes the capture-time-ordered frame list of a sequence.
// The sync engine resolves its future-image targets through this port.
type SequenceReader interface {
	// OrderedImages returns the sequence's frames sorted by capture time
	// ascending. Fails with a not-initialized error for unknown keys.
	OrderedImages(plantID, viewAngle string) ([]entities.Image, error)
}

// EventPublisher forwards domain events to an external bus (e.g. EventBridge)
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}
