package swapper

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
)

const (
	// MaxStrength bounds the colour correction; it is never reached for a finite distance.
	MaxStrength = 0.7
	// strengthKnee is the skin-tone distance at which half of MaxStrength is applied.
	strengthKnee = 40.0
)

// BT.601 luma weights in BGR order
var lumaWeights = [3]float64{0.114, 0.587, 0.299}

// Mean is a BGR colour mean with channels in 0..255.
type Mean struct {
	B, G, R float64
}

func (m Mean) rgb() colorful.Color {
	return colorful.Color{R: m.R / 255, G: m.G / 255, B: m.B / 255}
}

// Distance returns the Euclidean distance between two means in 0..255 BGR space.
func Distance(a, b Mean) float64 {
	return a.rgb().DistanceRgb(b.rgb()) * 255
}

// ColorMatcher shifts the skin tone of a source face towards a target face.
type ColorMatcher struct {
	skinLower gocv.Scalar
	skinUpper gocv.Scalar
}

// NewColorMatcher creates a matcher using the YCrCb skin band Cr 133..173, Cb 77..127.
func NewColorMatcher() *ColorMatcher {
	return &ColorMatcher{
		skinLower: gocv.NewScalar(0, 133, 77, 0),
		skinUpper: gocv.NewScalar(255, 173, 127, 0),
	}
}

// SkinMask returns 255 where face has a skin tone.
func (m *ColorMatcher) SkinMask(face gocv.Mat) (gocv.Mat, error) {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	if err := gocv.CvtColor(face, &ycrcb, gocv.ColorBGRToYCrCb); err != nil {
		return gocv.NewMat(), fmt.Errorf("skin mask: %w", err)
	}

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(ycrcb, m.skinLower, m.skinUpper, &mask)
	if mask.Rows() != face.Rows() || mask.Cols() != face.Cols() || mask.Type() != gocv.MatTypeCV8U {
		mask.Close()
		return gocv.NewMat(), fmt.Errorf("skin mask: got %dx%d type %v for a %dx%d face",
			mask.Cols(), mask.Rows(), mask.Type(), face.Cols(), face.Rows())
	}
	return mask, nil
}

// SkinMean returns the mean colour of the skin pixels of face. When no pixel
// falls in the skin band, the mean of the whole face is returned and
// fallback is true.
func (m *ColorMatcher) SkinMean(face gocv.Mat) (mean Mean, fallback bool, err error) {
	if err := checkBGR(face, "face"); err != nil {
		return Mean{}, false, err
	}
	skin, err := m.SkinMask(face)
	if err != nil {
		return Mean{}, false, err
	}
	defer skin.Close()

	if !face.IsContinuous() {
		face = face.Clone()
		defer face.Close()
	}
	pix, err := face.DataPtrUint8()
	if err != nil {
		return Mean{}, false, err
	}
	sel, err := skin.DataPtrUint8()
	if err != nil {
		return Mean{}, false, err
	}
	if len(sel)*3 != len(pix) {
		return Mean{}, false, fmt.Errorf("skin mask covers %d pixels, face has %d", len(sel), len(pix)/3)
	}

	if mean, n := average(pix, sel); n > 0 {
		return mean, false, nil
	}
	mean, _ = average(pix, nil)
	return mean, true, nil
}

// average returns the mean of the BGR pixels selected by a non-zero mask
// byte, or of every pixel when mask is nil.
func average(pix, mask []byte) (Mean, int) {
	var sum [3]float64
	n := 0
	for i := 0; i+2 < len(pix); i += 3 {
		if mask != nil && mask[i/3] == 0 {
			continue
		}
		sum[0] += float64(pix[i])
		sum[1] += float64(pix[i+1])
		sum[2] += float64(pix[i+2])
		n++
	}
	if n == 0 {
		return Mean{}, 0
	}
	return Mean{B: sum[0] / float64(n), G: sum[1] / float64(n), R: sum[2] / float64(n)}, n
}

// StrengthFromDistance maps a skin-tone distance to a correction strength in
// [0, MaxStrength). It is zero at d = 0 and non-decreasing in d.
func StrengthFromDistance(d float64) float64 {
	if math.IsNaN(d) || d <= 0 {
		return 0
	}
	s := MaxStrength * (1 - strengthKnee/(d+strengthKnee))
	return min(s, math.Nextafter(MaxStrength, 0))
}

// ClampStrength limits a caller supplied strength to [0, MaxStrength].
func ClampStrength(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return max(0, min(MaxStrength, s))
}

// EstimateStrength measures the skin-tone distance between two faces.
func (m *ColorMatcher) EstimateStrength(source, target gocv.Mat) (float64, error) {
	srcMean, _, err := m.SkinMean(source)
	if err != nil {
		return 0, fmt.Errorf("source skin tone: %w", err)
	}
	dstMean, _, err := m.SkinMean(target)
	if err != nil {
		return 0, fmt.Errorf("target skin tone: %w", err)
	}
	return StrengthFromDistance(Distance(srcMean, dstMean)), nil
}

// ApplyShift returns a copy of source whose skin tone is moved towards the
// target's by strength. The luma part of the shift is removed so the source
// keeps its lighting.
func (m *ColorMatcher) ApplyShift(source, target gocv.Mat, strength float64) (gocv.Mat, error) {
	srcMean, _, err := m.SkinMean(source)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("source skin tone: %w", err)
	}
	dstMean, _, err := m.SkinMean(target)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("target skin tone: %w", err)
	}

	strength = ClampStrength(strength)
	shift := [3]float64{
		(dstMean.B - srcMean.B) * strength,
		(dstMean.G - srcMean.G) * strength,
		(dstMean.R - srcMean.R) * strength,
	}
	luma := shift[0]*lumaWeights[0] + shift[1]*lumaWeights[1] + shift[2]*lumaWeights[2]
	for c := range shift {
		shift[c] -= luma
	}
	if math.Abs(shift[0]) < 1e-9 && math.Abs(shift[1]) < 1e-9 && math.Abs(shift[2]) < 1e-9 {
		return source.Clone(), nil
	}

	wide := gocv.NewMat()
	defer wide.Close()
	source.ConvertTo(&wide, gocv.MatTypeCV32FC3)

	offset := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(shift[0], shift[1], shift[2], 0),
		source.Rows(), source.Cols(), gocv.MatTypeCV32FC3)
	defer offset.Close()

	shifted := gocv.NewMat()
	defer shifted.Close()
	gocv.Add(wide, offset, &shifted)

	// saturating conversion clamps to 0..255
	out := gocv.NewMat()
	shifted.ConvertTo(&out, gocv.MatTypeCV8UC3)
	return out, nil
}

func checkBGR(img gocv.Mat, name string) error {
	if img.Empty() {
		return fmt.Errorf("%s is empty", name)
	}
	if img.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("%s must be 8-bit BGR, got type %v", name, img.Type())
	}
	return nil
}
