package sync

import (
	"phenotag-backend/domain/core/entities"
	"phenotag-backend/domain/core/reconcile"
	"phenotag-backend/domain/core/valueobjects"
)

// SourceContext names the frame an edit was made on and the sequence it belongs
// to. Target resolution never leaves this (plant, view angle) pair.
type SourceContext struct {
	PlantID   string `json:"plantId"`
	ViewAngle string `json:"viewAngle"`
	ImageID   string `json:"imageId"`
}

// Operation is one queued unit of sync work. It is a closed union: each variant
// carries exactly the fields its kind needs, and Kind/Payload/Source are the
// only things the drain loop reads.
type Operation interface {
	Kind() reconcile.OperationKind
	Payload() entities.Annotation
	Source() SourceContext

	// sealed prevents variants outside this package
	sealed()
}

// AddKeypoint mirrors a newly placed keypoint to future frames
type AddKeypoint struct {
	Keypoint      entities.Annotation
	SourceContext SourceContext
}

func (op AddKeypoint) Kind() reconcile.OperationKind { return reconcile.OpAddKeypoint }
func (op AddKeypoint) Payload() entities.Annotation  { return op.Keypoint }
func (op AddKeypoint) Source() SourceContext         { return op.SourceContext }
func (op AddKeypoint) sealed()                       {}

// MoveKeypoint mirrors a keypoint move. PreviousPosition is carried for the UI
// event surface only; reconciliation matches by key, so a move lands as an
// insert on frames that never had the point.
type MoveKeypoint struct {
	Keypoint         entities.Annotation
	PreviousPosition *valueobjects.Point
	SourceContext    SourceContext
}

func (op MoveKeypoint) Kind() reconcile.OperationKind { return reconcile.OpMoveKeypoint }
func (op MoveKeypoint) Payload() entities.Annotation  { return op.Keypoint }
func (op MoveKeypoint) Source() SourceContext         { return op.SourceContext }
func (op MoveKeypoint) sealed()                       {}

// DeleteKeypoint mirrors a keypoint deletion
type DeleteKeypoint struct {
	Keypoint      entities.Annotation
	SourceContext SourceContext
}

func (op DeleteKeypoint) Kind() reconcile.OperationKind { return reconcile.OpDeleteKeypoint }
func (op DeleteKeypoint) Payload() entities.Annotation  { return op.Keypoint }
func (op DeleteKeypoint) Source() SourceContext         { return op.SourceContext }
func (op DeleteKeypoint) sealed()                       {}

// EditDirection mirrors a direction change on an existing keypoint
type EditDirection struct {
	Keypoint      entities.Annotation
	SourceContext SourceContext
}

func (op EditDirection) Kind() reconcile.OperationKind { return reconcile.OpEditDirection }
func (op EditDirection) Payload() entities.Annotation  { return op.Keypoint }
func (op EditDirection) Source() SourceContext         { return op.SourceContext }
func (op EditDirection) sealed()                       {}

// CustomCreate mirrors creation of a custom-typed annotation
type CustomCreate struct {
	Annotation    entities.Annotation
	SourceContext SourceContext
}

func (op CustomCreate) Kind() reconcile.OperationKind { return reconcile.OpCustomCreate }
func (op CustomCreate) Payload() entities.Annotation  { return op.Annotation }
func (op CustomCreate) Source() SourceContext         { return op.SourceContext }
func (op CustomCreate) sealed()                       {}

// CustomUpdate mirrors an update to a custom-typed annotation
type CustomUpdate struct {
	Annotation    entities.Annotation
	SourceContext SourceContext
}

func (op CustomUpdate) Kind() reconcile.OperationKind { return reconcile.OpCustomUpdate }
func (op CustomUpdate) Payload() entities.Annotation  { return op.Annotation }
func (op CustomUpdate) Source() SourceContext         { return op.SourceContext }
func (op CustomUpdate) sealed()                       {}

// CustomDelete mirrors deletion of a custom-typed annotation
type CustomDelete struct {
	Annotation    entities.Annotation
	SourceContext SourceContext
}

func (op CustomDelete) Kind() reconcile.OperationKind { return reconcile.OpCustomDelete }
func (op CustomDelete) Payload() entities.Annotation  { return op.Annotation }
func (op CustomDelete) Source() SourceContext         { return op.SourceContext }
func (op CustomDelete) sealed()                       {}
