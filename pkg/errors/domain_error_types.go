package errors

import (
	"fmt"
	"net/http"
)

// Error codes for the annotation engine's own failure modes. The codes are part
// of the public surface: sync results and API responses carry them verbatim.
const (
	CodeNotInitialized     = "SEQUENCE_NOT_INITIALIZED"
	CodeImageNotInSequence = "IMAGE_NOT_IN_SEQUENCE"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeStoreRejected      = "STORE_REJECTED"
)

// NewNotInitializedError indicates a Sequencer method was called before
// Initialize for the given (plant, view angle) pair
func NewNotInitializedError(plantID, viewAngle string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeNotInitialized,
		Message:    fmt.Sprintf("sequence not initialized for plant %q view %q", plantID, viewAngle),
		Details:    map[string]interface{}{"plantId": plantID, "viewAngle": viewAngle},
		HTTPStatus: http.StatusConflict,
		StackTrace: captureStackTrace(),
	}
}

// NewImageNotInSequenceError indicates a save targeted an image id that is not
// part of the initialized sequence
func NewImageNotInSequenceError(plantID, viewAngle, imageID string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeImageNotInSequence,
		Message:    fmt.Sprintf("image %q is not in the sequence for plant %q view %q", imageID, plantID, viewAngle),
		Details:    map[string]interface{}{"plantId": plantID, "viewAngle": viewAngle, "imageId": imageID},
		HTTPStatus: http.StatusNotFound,
		StackTrace: captureStackTrace(),
	}
}

// NewStoreUnavailableError wraps a transport-level annotation store failure
func NewStoreUnavailableError(imageID string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Code:       CodeStoreUnavailable,
		Message:    fmt.Sprintf("annotation store unavailable for image %q", imageID),
		Details:    map[string]interface{}{"imageId": imageID},
		Cause:      cause,
		HTTPStatus: http.StatusServiceUnavailable,
		StackTrace: captureStackTrace(),
	}
}

// NewStoreRejectedError indicates the store refused a write (e.g. a failed
// conditional save)
func NewStoreRejectedError(imageID string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeRejected,
		Code:       CodeStoreRejected,
		Message:    fmt.Sprintf("annotation store rejected write for image %q", imageID),
		Details:    map[string]interface{}{"imageId": imageID},
		Cause:      cause,
		HTTPStatus: http.StatusConflict,
		StackTrace: captureStackTrace(),
	}
}

// IsNotInitialized reports whether err is a sequence-not-initialized error
func IsNotInitialized(err error) bool {
	return hasCode(err, CodeNotInitialized)
}

// IsImageNotInSequence reports whether err is an image-not-in-sequence error
func IsImageNotInSequence(err error) bool {
	return hasCode(err, CodeImageNotInSequence)
}

// IsStoreUnavailable reports whether err is a store transport failure
func IsStoreUnavailable(err error) bool {
	return hasCode(err, CodeStoreUnavailable)
}

// IsStoreRejected reports whether err is a store write rejection
func IsStoreRejected(err error) bool {
	return hasCode(err, CodeStoreRejected)
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
