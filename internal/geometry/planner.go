package geometry

import (
	"errors"
	"image"
)

// ErrInvalidDetection is returned for a face rectangle with no area.
var ErrInvalidDetection = errors.New("invalid face detection")

// MinBorder is the smallest hint border kept away from the canvas edge.
const MinBorder = 2

// Margins expands a face rectangle into the working canvas.
// Values are multiples of the face height (Top, Bottom) or width (Side).
type Margins struct {
	Top    float64 // hair
	Bottom float64 // neck
	Side   float64 // side hair
}

// HintBands shrinks the canvas into the segmentation seed rectangle.
type HintBands struct {
	Border int     // pixels excluded on the top, left and right edges
	Neck   float64 // bottom band, multiple of face height
	Side   float64 // extra left/right bands, multiple of face width
}

var (
	// CompactMargins frames the head tightly with a short neck.
	CompactMargins = Margins{Top: 1.0, Bottom: 0.4, Side: 0.3}
	// WideMargins leaves room for tall and wide hair.
	WideMargins = Margins{Top: 1.5, Bottom: 0.3, Side: 0.5}

	// NeckHint drops a wide neck band and nothing at the sides.
	NeckHint = HintBands{Border: MinBorder, Neck: 0.4}
	// HeadHint keeps more of the lower face but trims the shoulders at the sides.
	HeadHint = HintBands{Border: MinBorder, Neck: 0.25, Side: 0.15}
)

// PlanCanvas returns the canvas rectangle around face, clamped to bounds.
func PlanCanvas(face, bounds image.Rectangle, m Margins) (image.Rectangle, error) {
	if face.Dx() <= 0 || face.Dy() <= 0 {
		return image.Rectangle{}, ErrInvalidDetection
	}
	face = face.Intersect(bounds)
	if face.Empty() {
		return image.Rectangle{}, ErrInvalidDetection
	}

	w, h := face.Dx(), face.Dy()
	top := int(float64(h) * m.Top)
	bottom := int(float64(h) * m.Bottom)
	side := int(float64(w) * m.Side)

	x := max(bounds.Min.X, face.Min.X-side)
	y := max(bounds.Min.Y, face.Min.Y-top)
	cw := min(w+2*side, bounds.Max.X-x)
	ch := min(h+top+bottom, bounds.Max.Y-y)

	return clampMin(image.Rect(x, y, x+cw, y+ch), bounds), nil
}

// PlanHint returns the seed rectangle in canvas-local coordinates.
// face is in the same coordinate space as canvas.
func PlanHint(canvas, face image.Rectangle, b HintBands) image.Rectangle {
	border := max(b.Border, MinBorder)
	neck := int(float64(face.Dy()) * b.Neck)
	side := int(float64(face.Dx()) * b.Side)

	cw, ch := canvas.Dx(), canvas.Dy()
	x := min(border+side, cw-1)
	y := min(border, ch-1)
	w := min(max(cw-2*border-2*side, 1), cw-x)
	h := min(max(ch-border-neck, 1), ch-y)

	return clampMin(image.Rect(x, y, x+w, y+h), image.Rect(0, 0, cw, ch))
}

// FaceInCanvas translates a face rectangle into canvas-local coordinates.
func FaceInCanvas(canvas, face image.Rectangle) image.Rectangle {
	return face.Intersect(canvas).Sub(canvas.Min)
}

// clampMin keeps r inside bounds and at least 1x1 where bounds allow it.
func clampMin(r, bounds image.Rectangle) image.Rectangle {
	r = r.Intersect(bounds)
	if r.Dx() < 1 {
		r.Min.X = min(r.Min.X, bounds.Max.X-1)
		r.Max.X = r.Min.X + 1
	}
	if r.Dy() < 1 {
		r.Min.Y = min(r.Min.Y, bounds.Max.Y-1)
		r.Max.Y = r.Min.Y + 1
	}
	return r
}
