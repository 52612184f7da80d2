package valueobjects

import "fmt"

// AnnotationType distinguishes the built-in keypoint annotations from
// operator-defined custom annotation types
type AnnotationType string

const (
	AnnotationTypeRegular AnnotationType = "regular"
	AnnotationTypeCustom  AnnotationType = "custom"
)

// IsCustom reports whether the type is a custom annotation type
func (t AnnotationType) IsCustom() bool {
	return t == AnnotationTypeCustom
}

// AnnotationKey is the reconciliation identity of an annotation across frames.
// Two frames never share annotation ids, so "the same logical point" is matched
// by (order, type, customTypeId) instead. CustomTypeID is only set for custom
// annotations.
type AnnotationKey struct {
	Order        int
	Type         AnnotationType
	CustomTypeID string
}

// NewAnnotationKey builds a key, dropping the custom type id for regular annotations
func NewAnnotationKey(order int, annotationType AnnotationType, customTypeID string) AnnotationKey {
	key := AnnotationKey{Order: order, Type: annotationType}
	if annotationType.IsCustom() {
		key.CustomTypeID = customTypeID
	}
	return key
}

// Equals checks if two keys identify the same logical annotation
func (k AnnotationKey) Equals(other AnnotationKey) bool {
	return k == other
}

// String returns a human-readable form used in logs and error details
func (k AnnotationKey) String() string {
	if k.Type.IsCustom() {
		return fmt.Sprintf("%s/%s#%d", k.Type, k.CustomTypeID, k.Order)
	}
	return fmt.Sprintf("%s#%d", k.Type, k.Order)
}
