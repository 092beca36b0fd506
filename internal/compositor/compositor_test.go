package compositor

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"gocv.io/x/gocv"

	"github.com/dudu/headcut/internal/imageio"
)

func patternCanvas(w, h int) gocv.Mat {
	pix := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix = append(pix, uint8(x*7), uint8(y*11), uint8(x+y))
		}
	}
	img, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, pix)
	if err != nil {
		panic(err)
	}
	defer img.Close()
	return img.Clone()
}

// at reads channel c of pixel (x, y) from a multi-channel Mat.
func at(m gocv.Mat, x, y, c int) uint8 {
	return m.GetUCharAt(y, x*m.Channels()+c)
}

func patternMask(w, h int) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8U)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask.SetUCharAt(y, x, uint8((x*31+y*17)%256))
		}
	}
	return mask
}

func TestCompositeExact(t *testing.T) {
	for _, size := range []image.Point{{1, 1}, {37, 23}, {5, 300}, {300, 5}} {
		canvas := patternCanvas(size.X, size.Y)
		mask := patternMask(size.X, size.Y)

		out, err := Composite(canvas, mask)
		if err != nil {
			t.Fatalf("%v: Composite failed: %v", size, err)
		}
		if out.Cols() != size.X || out.Rows() != size.Y || out.Channels() != 4 {
			t.Fatalf("%v: unexpected output %dx%dx%d", size, out.Cols(), out.Rows(), out.Channels())
		}
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				for c := 0; c < 3; c++ {
					if got, want := at(out, x, y, c), at(canvas, x, y, c); got != want {
						t.Fatalf("%v: colour (%d,%d,%d) = %d, want %d", size, x, y, c, got, want)
					}
				}
				if got, want := at(out, x, y, 3), mask.GetUCharAt(y, x); got != want {
					t.Fatalf("%v: alpha (%d,%d) = %d, want %d", size, x, y, got, want)
				}
			}
		}
		canvas.Close()
		mask.Close()
		out.Close()
	}
}

func TestCompositeSmallerMask(t *testing.T) {
	canvas := patternCanvas(20, 10)
	defer canvas.Close()
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 5, 8, gocv.MatTypeCV8U)
	defer mask.Close()

	out, err := Composite(canvas, mask)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	if out.Cols() != 20 || out.Rows() != 10 {
		t.Fatalf("output must keep canvas size, got %dx%d", out.Cols(), out.Rows())
	}
	if a := at(out, 3, 2, 3); a != 255 {
		t.Errorf("inside mask: alpha %d, want 255", a)
	}
	if a := at(out, 15, 7, 3); a != 0 {
		t.Errorf("outside mask: alpha %d, want 0", a)
	}
	if c := at(out, 15, 7, 0); c != at(canvas, 15, 7, 0) {
		t.Errorf("colour must still come from the canvas")
	}
}

func TestCompositeRegionCanvas(t *testing.T) {
	parent := patternCanvas(40, 40)
	defer parent.Close()
	roi := parent.Region(image.Rect(10, 5, 30, 25))
	defer roi.Close()
	mask := patternMask(20, 20)
	defer mask.Close()

	out, err := Composite(roi, mask)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	if got, want := at(out, 4, 3, 0), at(parent, 14, 8, 0); got != want {
		t.Errorf("non-continuous canvas read wrong pixel: %d, want %d", got, want)
	}
}

func TestCompositeRejectsBadInput(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	canvas := patternCanvas(4, 4)
	defer canvas.Close()

	if _, err := Composite(empty, empty); err == nil {
		t.Error("expected error for empty canvas")
	}
	if _, err := Composite(canvas, canvas); err == nil {
		t.Error("expected error for a 3-channel mask")
	}
}

func TestPartition(t *testing.T) {
	tests := []struct{ rows, stride, parts int }{
		{10, 4, 3},
		{1, 8, 16},
		{7, 3, 7},
		{100, 12, 1},
	}
	for _, tt := range tests {
		buf := make([]byte, tt.rows*tt.stride)
		blocks := partition(buf, tt.rows, tt.stride, tt.parts)

		if len(blocks) > tt.parts || len(blocks) > tt.rows {
			t.Errorf("%+v: %d blocks", tt, len(blocks))
		}
		next := 0
		for _, b := range blocks {
			if b.first != next {
				t.Fatalf("%+v: block starts at row %d, expected %d", tt, b.first, next)
			}
			if cap(b.pix) != len(b.pix) {
				t.Errorf("%+v: block capacity extends past its rows", tt)
			}
			next += len(b.pix) / tt.stride
		}
		if next != tt.rows {
			t.Errorf("%+v: blocks cover %d rows", tt, next)
		}
	}
}

func TestEncode(t *testing.T) {
	rgba := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 4), 6, 9, gocv.MatTypeCV8UC4)
	defer rgba.Close()

	cutout, err := Encode(rgba)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(cutout.PNG))
	if err != nil {
		t.Fatalf("not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 9 || img.Bounds().Dy() != 6 {
		t.Errorf("unexpected size %v", img.Bounds())
	}
	if cutout.Base64 != imageio.Base64(cutout.PNG) {
		t.Error("base64 form does not match PNG bytes")
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := Encode(empty); !errors.Is(err, imageio.ErrEncode) {
		t.Errorf("expected ErrEncode, got %v", err)
	}
}
