package entities

import "time"

// Image is one frame of a time-lapse sequence. Frames are created at dataset
// load and immutable afterwards; CaptureTime is the sort key for the sequence.
type Image struct {
	ID          string    `json:"id"`
	CaptureTime time.Time `json:"captureTime"`
}
