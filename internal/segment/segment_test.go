package segment

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

// headImage draws a bright disc (the "head") on a dark grey background.
func headImage(w, h int) gocv.Mat {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0), h, w, gocv.MatTypeCV8UC3)
	gocv.Circle(&img, image.Pt(w/2, h/2), min(w, h)/3, color.RGBA{R: 220, G: 180, B: 150, A: 255}, -1)
	return img
}

func assertBinary(t *testing.T, mask gocv.Mat) {
	t.Helper()
	for y := 0; y < mask.Rows(); y++ {
		for x := 0; x < mask.Cols(); x++ {
			if v := mask.GetUCharAt(y, x); v != 0 && v != 255 {
				t.Fatalf("pixel (%d,%d) = %d, expected 0 or 255", x, y, v)
			}
		}
	}
}

func TestSegmentKeepsCanvasSize(t *testing.T) {
	img := headImage(80, 100)
	defer img.Close()
	hint := image.Rect(2, 2, 78, 80)

	for name, opt := range map[string]Options{"fast": Fast, "balanced": Balanced, "high": High} {
		t.Run(name, func(t *testing.T) {
			mask, err := Segment(img, hint, opt)
			if err != nil {
				t.Fatalf("Segment failed: %v", err)
			}
			defer mask.Close()

			if mask.Cols() != img.Cols() || mask.Rows() != img.Rows() {
				t.Fatalf("mask is %dx%d, canvas is %dx%d", mask.Cols(), mask.Rows(), img.Cols(), img.Rows())
			}
			if mask.Type() != gocv.MatTypeCV8U {
				t.Errorf("expected a single channel 8-bit mask, got %v", mask.Type())
			}
			assertBinary(t, mask)
		})
	}
}

func TestSegmentFindsHead(t *testing.T) {
	img := headImage(90, 90)
	defer img.Close()

	mask, err := Segment(img, image.Rect(2, 2, 88, 88), Fast)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	defer mask.Close()

	if got := mask.GetUCharAt(45, 45); got != 255 {
		t.Errorf("head centre labelled %d, expected 255", got)
	}
	if got := mask.GetUCharAt(0, 0); got != 0 {
		t.Errorf("corner labelled %d, expected 0", got)
	}
}

// On a flat canvas there is no colour edge: the outcome can only follow the
// seed, and nothing outside the hint may become foreground.
func TestSegmentFlatCanvas(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 120, 80, gocv.MatTypeCV8UC3)
	defer img.Close()
	hint := image.Rect(2, 2, 78, 100)

	for name, opt := range map[string]Options{"fast": Fast, "high": High} {
		t.Run(name, func(t *testing.T) {
			first, err := Segment(img, hint, opt)
			if err != nil {
				t.Fatalf("Segment failed: %v", err)
			}
			defer first.Close()
			second, err := Segment(img, hint, opt)
			if err != nil {
				t.Fatalf("Segment failed: %v", err)
			}
			defer second.Close()

			assertBinary(t, first)
			for y := 0; y < first.Rows(); y++ {
				for x := 0; x < first.Cols(); x++ {
					v := first.GetUCharAt(y, x)
					if v != second.GetUCharAt(y, x) {
						t.Fatalf("non-deterministic label at (%d,%d)", x, y)
					}
					if v != 0 && !image.Pt(x, y).In(hint) {
						t.Fatalf("pixel (%d,%d) outside the hint is foreground", x, y)
					}
				}
			}
		})
	}
}

func TestSegmentFeatherIsSoft(t *testing.T) {
	img := headImage(80, 80)
	defer img.Close()

	mask, err := Segment(img, image.Rect(2, 2, 78, 78), Fast.WithFeather(7))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	defer mask.Close()

	soft := false
	for y := 0; y < mask.Rows() && !soft; y++ {
		for x := 0; x < mask.Cols(); x++ {
			if v := mask.GetUCharAt(y, x); v > 0 && v < 255 {
				soft = true
				break
			}
		}
	}
	if !soft {
		t.Error("feathered mask has no intermediate values")
	}
}

func TestSegmentErrors(t *testing.T) {
	img := headImage(40, 40)
	defer img.Close()
	empty := gocv.NewMat()
	defer empty.Close()
	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 40, 40, gocv.MatTypeCV8U)
	defer gray.Close()

	tests := []struct {
		name   string
		canvas gocv.Mat
		hint   image.Rectangle
		opt    Options
	}{
		{"empty canvas", empty, image.Rect(2, 2, 30, 30), Fast},
		{"gray canvas", gray, image.Rect(2, 2, 30, 30), Fast},
		{"empty hint", img, image.Rectangle{}, Fast},
		{"hint outside", img, image.Rect(30, 30, 60, 60), Fast},
		{"hint too small", img, image.Rect(5, 5, 7, 7), Fast},
		{"hint covers canvas", img, image.Rect(0, 0, 40, 40), Fast},
		{"no iterations", img, image.Rect(2, 2, 30, 30), Options{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := Segment(tt.canvas, tt.hint, tt.opt)
			defer mask.Close()
			if !errors.Is(err, ErrSegmentationFailed) {
				t.Fatalf("expected ErrSegmentationFailed, got %v", err)
			}
			var segErr *Error
			if !errors.As(err, &segErr) || segErr.Cause == nil {
				t.Errorf("expected a cause on %v", err)
			}
		})
	}
}

func TestTightenShrinksBoundary(t *testing.T) {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 60, 60, gocv.MatTypeCV8U)
	defer mask.Close()
	gocv.Rectangle(&mask, image.Rect(10, 10, 50, 50), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	out, err := tighten(mask, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	before, after := gocv.CountNonZero(mask), gocv.CountNonZero(out)
	if after == 0 || after >= before {
		t.Errorf("expected a smaller non-empty mask, got %d -> %d", before, after)
	}
	if out.GetUCharAt(30, 30) != 255 {
		t.Error("centre removed by the distance cutoff")
	}

	full := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 20, 20, gocv.MatTypeCV8U)
	defer full.Close()
	kept, err := tighten(full, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer kept.Close()
	if gocv.CountNonZero(kept) != 400 {
		t.Error("a mask without background must be left untouched")
	}
}

func TestRefineReportsLibraryErrors(t *testing.T) {
	// distance transform only accepts 8-bit masks
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 40, 40, gocv.MatTypeCV32F)
	defer mask.Close()
	gocv.Rectangle(&mask, image.Rect(10, 10, 30, 30), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	out, err := refine(mask, Options{DistanceRefine: true, DistanceCutoff: 10})
	defer out.Close()
	if !errors.Is(err, ErrSegmentationFailed) {
		t.Fatalf("err = %v, want ErrSegmentationFailed", err)
	}
	var segErr *Error
	if !errors.As(err, &segErr) || segErr.Cause == nil {
		t.Fatalf("expected a cause on %v", err)
	}
	if !out.Empty() {
		t.Error("failed refine returned a mask")
	}
}
