// Package imageio loads photographs into BGR Mats and serializes results.
package imageio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode is returned for unreadable or corrupt input images.
	ErrDecode = errors.New("failed to decode image")
	// ErrEncode is returned when a Mat cannot be serialized.
	ErrEncode = errors.New("failed to encode image")
)

const jpegQuality = 90

// Load reads path into a 3-channel BGR Mat. OpenCV decoders are tried first;
// formats it cannot read (webp builds without libwebp, exotic gifs) go through
// the Go image decoders.
func Load(path string) (gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	if !img.Empty() {
		return img, nil
	}
	img.Close()

	decoded, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	mat, err := gocv.ImageToMatRGB(decoded)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: %s: empty image", ErrDecode, path)
	}
	return mat, nil
}

// EncodePNG serializes a 1, 3 or 4 channel Mat as PNG.
func EncodePNG(img gocv.Mat) ([]byte, error) {
	return encode(gocv.PNGFileExt, img)
}

// EncodeJPEG serializes a BGR Mat as JPEG.
func EncodeJPEG(img gocv.Mat) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrEncode)
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), jpegQuality})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer buf.Close()
	return copyBytes(buf.GetBytes()), nil
}

func encode(ext gocv.FileExt, img gocv.Mat) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrEncode)
	}
	buf, err := gocv.IMEncode(ext, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer buf.Close()
	return copyBytes(buf.GetBytes()), nil
}

// the native buffer is freed on Close
func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Base64 is the transport form handed to the host application.
func Base64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
