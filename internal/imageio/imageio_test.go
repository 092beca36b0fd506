package imageio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.png"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.jpg")
	if err := os.WriteFile(path, []byte("definitely not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestLoadPNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "in.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	mat, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer mat.Close()

	if mat.Cols() != 8 || mat.Rows() != 6 || mat.Channels() != 3 {
		t.Fatalf("unexpected shape %dx%dx%d", mat.Cols(), mat.Rows(), mat.Channels())
	}
	v := mat.GetVecbAt(3, 4)
	if v[0] != 50 || v[1] != 100 || v[2] != 200 {
		t.Errorf("expected BGR (50,100,200), got %v", v)
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 128), 4, 5, gocv.MatTypeCV8UC4)
	defer mat.Close()

	data, err := EncodePNG(mat)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 5 || b.Dy() != 4 {
		t.Errorf("unexpected PNG size %v", b)
	}
	_, _, _, a := decoded.At(0, 0).RGBA()
	if a>>8 != 128 {
		t.Errorf("expected alpha 128, got %d", a>>8)
	}

	decodedB64, err := base64.StdEncoding.DecodeString(Base64(data))
	if err != nil || !bytes.Equal(decodedB64, data) {
		t.Errorf("base64 transport form does not round trip")
	}
}

func TestEncodeEmpty(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := EncodePNG(empty); !errors.Is(err, ErrEncode) {
		t.Errorf("expected ErrEncode, got %v", err)
	}
	if _, err := EncodeJPEG(empty); !errors.Is(err, ErrEncode) {
		t.Errorf("expected ErrEncode, got %v", err)
	}
}
