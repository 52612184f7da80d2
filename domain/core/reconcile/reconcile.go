// Package reconcile merges a single incoming annotation into a target frame's
// annotation set. Matching is by value, on (order, annotationType, customTypeId),
// never by annotation id, because each frame's entries are created independently
// and ids are frame-local.
package reconcile

import (
	"time"

	"phenotag-backend/domain/core/entities"
	"phenotag-backend/domain/core/valueobjects"
)

// OperationKind tags one unit of sync work
type OperationKind string

const (
	OpAddKeypoint    OperationKind = "add_keypoint"
	OpMoveKeypoint   OperationKind = "move_keypoint"
	OpDeleteKeypoint OperationKind = "delete_keypoint"
	OpEditDirection  OperationKind = "edit_direction"
	OpCustomCreate   OperationKind = "custom_create"
	OpCustomUpdate   OperationKind = "custom_update"
	OpCustomDelete   OperationKind = "custom_delete"
)

// IsDelete reports whether the kind removes an annotation
func (k OperationKind) IsDelete() bool {
	return k == OpDeleteKeypoint || k == OpCustomDelete
}

// Reconcile computes the target set after applying one operation. The input set
// is never mutated; the returned set is a deep copy.
//
// Semantics per kind:
//   - add/create and move/update are match-or-insert: an existing entry with the
//     same key has its mutable fields overwritten (replays never duplicate); a
//     missing entry is inserted. A move to a frame that never had the point
//     therefore creates it there, so every frame is independently fillable.
//   - edit_direction overwrites direction fields only, preserving everything
//     else on the matched entry; a miss inserts like add.
//   - deletes remove the matched entry and are a silent no-op on a miss.
func Reconcile(existing entities.AnnotationSet, incoming entities.Annotation, kind OperationKind) entities.AnnotationSet {
	out := existing.Clone()

	switch kind {
	case OpAddKeypoint, OpCustomCreate, OpMoveKeypoint, OpCustomUpdate:
		upsert(&out, incoming, overwriteFields)
	case OpEditDirection:
		upsert(&out, incoming, overwriteDirections)
	case OpDeleteKeypoint, OpCustomDelete:
		remove(&out, incoming)
	}

	out.Touch()
	return out
}

// overwrite applies the incoming annotation's data onto an existing entry
type overwrite func(target *entities.Annotation, incoming entities.Annotation)

func upsert(set *entities.AnnotationSet, incoming entities.Annotation, apply overwrite) {
	if i := set.IndexOf(incoming.Key()); i >= 0 {
		apply(&set.Annotations[i], incoming)
		set.Annotations[i].Timestamp = time.Now()
		return
	}
	inserted := incoming.CloneForFrame()
	inserted.Timestamp = time.Now()
	set.Annotations = append(set.Annotations, inserted)
}

func remove(set *entities.AnnotationSet, incoming entities.Annotation) {
	i := set.IndexOf(incoming.Key())
	if i < 0 {
		return
	}
	set.Annotations = append(set.Annotations[:i], set.Annotations[i+1:]...)
}

// overwriteFields replaces position and direction data, keeping the entry's
// frame-local id and key fields
func overwriteFields(target *entities.Annotation, incoming entities.Annotation) {
	target.X = incoming.X
	target.Y = incoming.Y
	overwriteDirections(target, incoming)
}

// overwriteDirections replaces only the direction payload
func overwriteDirections(target *entities.Annotation, incoming entities.Annotation) {
	if incoming.Direction != nil {
		d := *incoming.Direction
		target.Direction = &d
	} else {
		target.Direction = nil
	}
	target.DirectionType = incoming.DirectionType
	target.Directions = valueobjects.CloneDirections(incoming.Directions)
	target.MaxDirections = incoming.MaxDirections
}
