package pipeline

import (
	"errors"

	"github.com/dudu/headcut/internal/detector"
	"github.com/dudu/headcut/internal/geometry"
	"github.com/dudu/headcut/internal/imageio"
	"github.com/dudu/headcut/internal/segment"
)

// ErrNoFaceDetected is returned when an image that needs a face has none.
var ErrNoFaceDetected = errors.New("no face detected")

// Message returns the user-facing message for err's category.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, imageio.ErrDecode):
		return "Could not read the image file."
	case errors.Is(err, detector.ErrUnavailable):
		return "The face detector could not be loaded."
	case errors.Is(err, ErrNoFaceDetected):
		return "No face was found in the image."
	case errors.Is(err, geometry.ErrInvalidDetection):
		return "The face detector returned an empty face region."
	case errors.Is(err, segment.ErrSegmentationFailed):
		return "Could not separate the head from the background."
	case errors.Is(err, imageio.ErrEncode):
		return "Could not encode the result image."
	default:
		return err.Error()
	}
}
