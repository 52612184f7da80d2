package entities

import (
	"time"

	"phenotag-backend/domain/core/valueobjects"

	"github.com/google/uuid"
)

// Annotation is one labeled point on one frame: a branch/keypoint position,
// optionally with direction data, or an instance of an operator-defined custom
// type. The id is frame-local; matching across frames uses Key(), never the id.
type Annotation struct {
	ID           string                       `json:"id"`
	Order        int                          `json:"order"`
	Type         valueobjects.AnnotationType  `json:"annotationType"`
	CustomTypeID string                       `json:"customTypeId,omitempty"`
	X            float64                      `json:"x"`
	Y            float64                      `json:"y"`

	// Direction data: either a single angle, or an ordered list capped at
	// MaxDirections, each entry carrying click-position metadata.
	Direction     *float64                      `json:"direction,omitempty"`
	DirectionType valueobjects.DirectionType    `json:"directionType,omitempty"`
	Directions    []valueobjects.DirectionEntry `json:"directions,omitempty"`
	MaxDirections int                           `json:"maxDirections,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NewKeypoint creates a regular keypoint annotation with a fresh frame-local id
func NewKeypoint(order int, x, y float64) Annotation {
	return Annotation{
		ID:        uuid.New().String(),
		Order:     order,
		Type:      valueobjects.AnnotationTypeRegular,
		X:         x,
		Y:         y,
		Timestamp: time.Now(),
	}
}

// NewCustomAnnotation creates an annotation of an operator-defined type
func NewCustomAnnotation(customTypeID string, order int, x, y float64) Annotation {
	return Annotation{
		ID:           uuid.New().String(),
		Order:        order,
		Type:         valueobjects.AnnotationTypeCustom,
		CustomTypeID: customTypeID,
		X:            x,
		Y:            y,
		Timestamp:    time.Now(),
	}
}

// Key returns the cross-frame reconciliation identity
func (a Annotation) Key() valueobjects.AnnotationKey {
	return valueobjects.NewAnnotationKey(a.Order, a.Type, a.CustomTypeID)
}

// Clone returns a deep copy, including the direction list
func (a Annotation) Clone() Annotation {
	out := a
	if a.Direction != nil {
		d := *a.Direction
		out.Direction = &d
	}
	out.Directions = valueobjects.CloneDirections(a.Directions)
	return out
}

// CloneForFrame returns a deep copy carrying a fresh frame-local id.
// Used when an annotation is materialized on a frame that never had it.
func (a Annotation) CloneForFrame() Annotation {
	out := a.Clone()
	out.ID = uuid.New().String()
	return out
}

// CloneAnnotations deep-copies a slice of annotations
func CloneAnnotations(annotations []Annotation) []Annotation {
	if annotations == nil {
		return nil
	}
	out := make([]Annotation, len(annotations))
	for i, a := range annotations {
		out[i] = a.Clone()
	}
	return out
}
