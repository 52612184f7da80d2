package valueobjects

// DirectionType describes how direction data is attached to an annotation
type DirectionType string

const (
	// DirectionTypeNone marks annotations without any direction data
	DirectionTypeNone DirectionType = "none"
	// DirectionTypeSingle marks annotations carrying one angle
	DirectionTypeSingle DirectionType = "single"
	// DirectionTypeMultiple marks annotations carrying an ordered list of angles
	DirectionTypeMultiple DirectionType = "multiple"
)

// ClickPosition records where on the canvas a direction was picked.
// Kept verbatim on the annotation so the UI can re-render the direction handle.
type ClickPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DirectionEntry is one angle in a multi-direction annotation
type DirectionEntry struct {
	Angle         float64        `json:"angle"`
	Type          string         `json:"type,omitempty"`
	ClickPosition *ClickPosition `json:"clickPosition,omitempty"`
}

// Clone returns a deep copy of the entry
func (d DirectionEntry) Clone() DirectionEntry {
	out := d
	if d.ClickPosition != nil {
		cp := *d.ClickPosition
		out.ClickPosition = &cp
	}
	return out
}

// CloneDirections deep-copies a direction list, preserving nil
func CloneDirections(entries []DirectionEntry) []DirectionEntry {
	if entries == nil {
		return nil
	}
	out := make([]DirectionEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// Point is a 2D canvas coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
