package pipeline

import "github.com/dudu/headcut/internal/compositor"

// FaceResult is the outcome for one detected face: a Cutout or an AnnotatedCutout.
type FaceResult interface {
	Image() compositor.Cutout
	faceResult()
}

// Cutout is a transparent PNG of one head.
type Cutout struct {
	compositor.Cutout
}

// AnnotatedCutout is a Cutout with a JPEG of the canvas showing the face,
// hint and landmarks.
type AnnotatedCutout struct {
	compositor.Cutout
	DebugJPEG   []byte
	DebugBase64 string
}

func (c Cutout) Image() compositor.Cutout          { return c.Cutout }
func (c AnnotatedCutout) Image() compositor.Cutout { return c.Cutout }

func (Cutout) faceResult()          {}
func (AnnotatedCutout) faceResult() {}

// SwapResult is the target image with the source face blended in.
type SwapResult struct {
	Composite    compositor.Cutout
	StrengthUsed float64
}
