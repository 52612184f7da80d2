package valueobjects

import (
	"errors"
	"fmt"
)

// SequenceKey identifies one time-lapse sequence: all frames of one plant
// captured from one camera view angle. Propagation never crosses a key.
type SequenceKey struct {
	plantID   string
	viewAngle string
}

// NewSequenceKey creates a sequence key
func NewSequenceKey(plantID, viewAngle string) (SequenceKey, error) {
	if plantID == "" {
		return SequenceKey{}, errors.New("plant ID cannot be empty")
	}
	if viewAngle == "" {
		return SequenceKey{}, errors.New("view angle cannot be empty")
	}
	return SequenceKey{plantID: plantID, viewAngle: viewAngle}, nil
}

// PlantID returns the plant identifier
func (k SequenceKey) PlantID() string {
	return k.plantID
}

// ViewAngle returns the camera view angle
func (k SequenceKey) ViewAngle() string {
	return k.viewAngle
}

// IsZero checks if the key is the zero value
func (k SequenceKey) IsZero() bool {
	return k.plantID == "" && k.viewAngle == ""
}

// String returns the canonical "plant/view" form used in logs
func (k SequenceKey) String() string {
	return fmt.Sprintf("%s/%s", k.plantID, k.viewAngle)
}
