package events

// Event type names. The annotation UI subscribes to these to surface sync
// progress and non-blocking warnings.
const (
	EventTypeSyncToggled           = "sync.toggled"
	EventTypeSyncStarted           = "sync.started"
	EventTypeSyncError             = "sync.error"
	EventTypeSyncCompleted         = "sync.completed"
	EventTypeAnnotationsPropagated = "sequence.annotations_propagated"
)

// SyncToggled is raised when real-time sync is switched on or off
type SyncToggled struct {
	BaseEvent
	Enabled bool `json:"enabled"`
}

// NewSyncToggled creates a SyncToggled event
func NewSyncToggled(enabled bool) SyncToggled {
	return SyncToggled{BaseEvent: newBase(EventTypeSyncToggled), Enabled: enabled}
}

// SyncStarted is raised once when the queue worker begins a drain run
type SyncStarted struct {
	BaseEvent
	QueueLength int `json:"queue_length"`
}

// NewSyncStarted creates a SyncStarted event
func NewSyncStarted(queueLength int) SyncStarted {
	return SyncStarted{BaseEvent: newBase(EventTypeSyncStarted), QueueLength: queueLength}
}

// SyncError is raised for each failed target or unresolvable operation.
// Failures are reported, never fatal to the queue.
type SyncError struct {
	BaseEvent
	OperationKind string `json:"operation_kind"`
	ImageID       string `json:"image_id,omitempty"`
	Error         string `json:"error"`
}

// NewSyncError creates a SyncError event
func NewSyncError(operationKind, imageID string, err error) SyncError {
	return SyncError{
		BaseEvent:     newBase(EventTypeSyncError),
		OperationKind: operationKind,
		ImageID:       imageID,
		Error:         err.Error(),
	}
}

// SyncCompleted is raised once when the queue drains back to empty
type SyncCompleted struct {
	BaseEvent
}

// NewSyncCompleted creates a SyncCompleted event
func NewSyncCompleted() SyncCompleted {
	return SyncCompleted{BaseEvent: newBase(EventTypeSyncCompleted)}
}

// AnnotationsPropagated is raised after a sequencer save distributed an
// annotation set to later frames
type AnnotationsPropagated struct {
	BaseEvent
	PlantID         string `json:"plant_id"`
	ViewAngle       string `json:"view_angle"`
	SourceImageID   string `json:"source_image_id"`
	PropagatedCount int    `json:"propagated_count"`
}

// NewAnnotationsPropagated creates an AnnotationsPropagated event
func NewAnnotationsPropagated(plantID, viewAngle, sourceImageID string, count int) AnnotationsPropagated {
	return AnnotationsPropagated{
		BaseEvent:       newBase(EventTypeAnnotationsPropagated),
		PlantID:         plantID,
		ViewAngle:       viewAngle,
		SourceImageID:   sourceImageID,
		PropagatedCount: count,
	}
}
