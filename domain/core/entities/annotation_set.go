package entities

import (
	"time"

	"phenotag-backend/domain/core/valueobjects"
)

// AnnotationSet holds every annotation of one frame. Sets are loaded from the
// annotation store on demand and replaced wholesale on save.
//
// Invariant: at most one annotation per reconciliation key.
type AnnotationSet struct {
	ImageID      string       `json:"imageId"`
	Annotations  []Annotation `json:"annotations"`
	LastModified time.Time    `json:"lastModified"`
}

// NewAnnotationSet creates an empty set for a frame
func NewAnnotationSet(imageID string) AnnotationSet {
	return AnnotationSet{
		ImageID:      imageID,
		Annotations:  []Annotation{},
		LastModified: time.Now(),
	}
}

// Clone returns a deep copy of the set
func (s AnnotationSet) Clone() AnnotationSet {
	out := s
	out.Annotations = CloneAnnotations(s.Annotations)
	return out
}

// IndexOf returns the position of the annotation matching key, or -1
func (s AnnotationSet) IndexOf(key valueobjects.AnnotationKey) int {
	for i, a := range s.Annotations {
		if a.Key().Equals(key) {
			return i
		}
	}
	return -1
}

// Find returns the annotation matching key, if any
func (s AnnotationSet) Find(key valueobjects.AnnotationKey) (Annotation, bool) {
	if i := s.IndexOf(key); i >= 0 {
		return s.Annotations[i], true
	}
	return Annotation{}, false
}

// IsEmpty reports whether the set has no annotations
func (s AnnotationSet) IsEmpty() bool {
	return len(s.Annotations) == 0
}

// Touch refreshes the last-modified timestamp
func (s *AnnotationSet) Touch() {
	s.LastModified = time.Now()
}
