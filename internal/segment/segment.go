// Package segment separates a head from its background inside a canvas.
//
// Labelling uses GrabCut: Gaussian mixture colour models are fitted to the
// current foreground and background sets and every pixel is relabelled with a
// min-cut that adds a smoothness term between neighbours. The seed is a hint
// rectangle; everything outside it is definite background. The label map is
// then collapsed to a binary mask and cleaned up morphologically.
package segment

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrSegmentationFailed matches every *Error.
var ErrSegmentationFailed = errors.New("segmentation failed")

// Error carries the cause of a failed segmentation.
type Error struct {
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", ErrSegmentationFailed, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool { return target == ErrSegmentationFailed }

func fail(format string, args ...any) error {
	return &Error{Cause: fmt.Errorf(format, args...)}
}

// wrap reports an OpenCV failure inside step op.
func wrap(op string, err error) error {
	return &Error{Cause: fmt.Errorf("%s: %w", op, err)}
}

// GrabCut labels.
const (
	labelBackground         = 0
	labelForeground         = 1
	labelProbableBackground = 2
	labelProbableForeground = 3
)

// gmmComponents is the number of Gaussians per colour model. Each model needs
// at least this many samples to initialise.
const gmmComponents = 5

// Options controls labelling and refinement.
type Options struct {
	Iterations int
	// Preprocess denoises with an edge-preserving filter and boosts local
	// contrast on luma before labelling.
	Preprocess  bool
	OpenKernel  int
	CloseKernel int
	// DistanceRefine drops the outer boundary ring whose normalised distance to
	// the mask edge is below DistanceCutoff.
	DistanceRefine bool
	DistanceCutoff float64
	// FeatherKernel blurs the final mask into soft 0..255 values; 0 keeps it binary.
	FeatherKernel int
}

var (
	Fast = Options{
		Iterations:  5,
		OpenKernel:  3,
		CloseKernel: 9,
	}
	Balanced = Options{
		Iterations:  15,
		OpenKernel:  3,
		CloseKernel: 9,
	}
	High = Options{
		Iterations:     25,
		Preprocess:     true,
		OpenKernel:     5,
		CloseKernel:    7,
		DistanceRefine: true,
		DistanceCutoff: 10,
	}
)

// WithFeather returns a copy of o that blurs the final mask.
func (o Options) WithFeather(kernel int) Options {
	o.FeatherKernel = kernel
	return o
}

// Segment returns a mask with the canvas dimensions: 255 for head and hair,
// 0 for background. hint is in canvas coordinates. The caller owns the mask.
func Segment(canvas gocv.Mat, hint image.Rectangle, opt Options) (gocv.Mat, error) {
	if err := validate(canvas, hint, opt); err != nil {
		return gocv.NewMat(), err
	}

	input := canvas
	if opt.Preprocess {
		enhanced, err := preprocess(canvas)
		if err != nil {
			return gocv.NewMat(), err
		}
		defer enhanced.Close()
		input = enhanced
	}

	labels := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(labelProbableBackground, 0, 0, 0),
		canvas.Rows(), canvas.Cols(), gocv.MatTypeCV8U)
	defer labels.Close()
	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	if err := gocv.GrabCut(input, &labels, hint, &bgdModel, &fgdModel, opt.Iterations, gocv.GCInitWithRect); err != nil {
		return gocv.NewMat(), wrap("grabcut", err)
	}

	binary, err := foreground(labels)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer binary.Close()

	return refine(binary, opt)
}

func validate(canvas gocv.Mat, hint image.Rectangle, opt Options) error {
	if canvas.Empty() {
		return fail("empty canvas")
	}
	if canvas.Type() != gocv.MatTypeCV8UC3 {
		return fail("canvas must be 8-bit BGR, got type %v", canvas.Type())
	}
	if opt.Iterations < 1 {
		return fail("iterations must be positive, got %d", opt.Iterations)
	}
	bounds := image.Rect(0, 0, canvas.Cols(), canvas.Rows())
	if hint.Empty() || !hint.In(bounds) {
		return fail("hint %v not inside canvas %v", hint, bounds)
	}
	fgd := hint.Dx() * hint.Dy()
	if fgd < gmmComponents {
		return fail("hint %v too small to seed the foreground model", hint)
	}
	if bounds.Dx()*bounds.Dy()-fgd < gmmComponents {
		return fail("hint %v leaves too little background to seed the background model", hint)
	}
	return nil
}

// foreground collapses definite and probable foreground into 0/255.
func foreground(labels gocv.Mat) (gocv.Mat, error) {
	fgd := gocv.NewMatFromScalar(gocv.Scalar{Val1: labelForeground}, gocv.MatTypeCV8U)
	defer fgd.Close()
	prFgd := gocv.NewMatFromScalar(gocv.Scalar{Val1: labelProbableForeground}, gocv.MatTypeCV8U)
	defer prFgd.Close()

	sure := gocv.NewMat()
	defer sure.Close()
	if err := gocv.Compare(labels, fgd, &sure, gocv.CompareEQ); err != nil {
		return gocv.NewMat(), wrap("compare", err)
	}

	probable := gocv.NewMat()
	defer probable.Close()
	if err := gocv.Compare(labels, prFgd, &probable, gocv.CompareEQ); err != nil {
		return gocv.NewMat(), wrap("compare", err)
	}

	combined := gocv.NewMat()
	if err := gocv.BitwiseOr(sure, probable, &combined); err != nil {
		combined.Close()
		return gocv.NewMat(), wrap("combine labels", err)
	}
	return combined, nil
}
