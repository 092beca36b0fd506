package detector

import (
	"image"
	"math"
)

// Point represents a 2D point
type Point struct {
	X, Y float32
}

// BoundingBox represents a face bounding box
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Rect rounds the box outwards to integer pixel coordinates. An inverted or
// zero-size box yields the empty rectangle, which the geometry planner rejects.
// No clamping happens here: detector output is clamped by the geometry planner.
func (b BoundingBox) Rect() image.Rectangle {
	if !(b.Width() > 0 && b.Height() > 0) {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(float64(b.X1))), int(math.Floor(float64(b.Y1))),
		int(math.Ceil(float64(b.X2))), int(math.Ceil(float64(b.Y2))),
	)
}

func (b BoundingBox) intersect(o BoundingBox) BoundingBox {
	return BoundingBox{
		X1: max(b.X1, o.X1), Y1: max(b.Y1, o.Y1),
		X2: min(b.X2, o.X2), Y2: min(b.Y2, o.Y2),
	}
}

// BoxFromRect converts an integer rectangle to a bounding box.
func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{
		X1: float32(r.Min.X), Y1: float32(r.Min.Y),
		X2: float32(r.Max.X), Y2: float32(r.Max.Y),
	}
}

// Landmarks represents 5 facial landmark points
type Landmarks struct {
	LeftEye    Point // index 0
	RightEye   Point // index 1
	Nose       Point // index 2
	LeftMouth  Point // index 3
	RightMouth Point // index 4
}

// Points returns the landmarks in index order.
func (l Landmarks) Points() []Point {
	return []Point{l.LeftEye, l.RightEye, l.Nose, l.LeftMouth, l.RightMouth}
}

// Face represents a detected face
type Face struct {
	BoundingBox BoundingBox
	Landmarks   *Landmarks // nil for detectors without keypoints
	Score       float32
}

// Rect returns the integer face rectangle.
func (f Face) Rect() image.Rectangle {
	return f.BoundingBox.Rect()
}

// FaceFromRect builds a face with full confidence from a rectangle.
func FaceFromRect(r image.Rectangle) Face {
	return Face{BoundingBox: BoxFromRect(r), Score: 1}
}
