package swapper

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Blender handles face blending operations
type Blender struct {
	blurSize int
}

// NewBlender creates a new face blender. blurSize is forced odd.
func NewBlender(blurSize int) *Blender {
	if blurSize < 1 {
		blurSize = 1
	}
	if blurSize%2 == 0 {
		blurSize++
	}
	return &Blender{blurSize: blurSize}
}

// BuildFeatherMask returns a width x height single channel mask holding a
// filled ellipse with semi-axes 0.40*width and 0.48*height, softened by a
// Gaussian blur.
func (b *Blender) BuildFeatherMask(width, height int) (gocv.Mat, error) {
	if width <= 0 || height <= 0 {
		return gocv.NewMat(), fmt.Errorf("feather mask size %dx%d", width, height)
	}
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8U)

	gocv.Ellipse(&mask,
		image.Pt(width/2, height/2),
		image.Pt(int(float64(width)*0.40), int(float64(height)*0.48)),
		0, 0, 360,
		color.RGBA{R: 255, G: 255, B: 255, A: 255},
		-1,
	)

	blurred := gocv.NewMat()
	err := gocv.GaussianBlur(mask, &blurred, image.Pt(b.blurSize, b.blurSize), 0, 0, gocv.BorderDefault)
	mask.Close()
	if err != nil {
		blurred.Close()
		return gocv.NewMat(), fmt.Errorf("feather mask: %w", err)
	}
	return blurred, nil
}

// Blend writes src over dst with its top-left corner at (offX, offY):
// dst = src*a + dst*(1-a) where a = mask/255, truncated to uint8. Pixels that
// fall outside dst are skipped. dst is modified in place.
func (b *Blender) Blend(src gocv.Mat, dst *gocv.Mat, mask gocv.Mat, offX, offY int) error {
	if err := checkBGR(src, "source"); err != nil {
		return err
	}
	if dst == nil {
		return errors.New("destination is nil")
	}
	if err := checkBGR(*dst, "destination"); err != nil {
		return err
	}
	if mask.Type() != gocv.MatTypeCV8U || mask.Rows() != src.Rows() || mask.Cols() != src.Cols() {
		return fmt.Errorf("mask must be 8-bit single channel %dx%d", src.Cols(), src.Rows())
	}
	if !dst.IsContinuous() {
		return errors.New("destination must be continuous")
	}
	if !src.IsContinuous() {
		src = src.Clone()
		defer src.Close()
	}
	if !mask.IsContinuous() {
		mask = mask.Clone()
		defer mask.Close()
	}

	sp, err := src.DataPtrUint8()
	if err != nil {
		return err
	}
	mp, err := mask.DataPtrUint8()
	if err != nil {
		return err
	}
	dp, err := dst.DataPtrUint8()
	if err != nil {
		return err
	}

	w, h := src.Cols(), src.Rows()
	dw, dh := dst.Cols(), dst.Rows()
	for y := 0; y < h; y++ {
		dy := offY + y
		if dy < 0 || dy >= dh {
			continue
		}
		for x := 0; x < w; x++ {
			dx := offX + x
			if dx < 0 || dx >= dw {
				continue
			}
			a := float64(mp[y*w+x]) / 255
			si := (y*w + x) * 3
			di := (dy*dw + dx) * 3
			for c := 0; c < 3; c++ {
				dp[di+c] = uint8(float64(sp[si+c])*a + float64(dp[di+c])*(1-a))
			}
		}
	}
	return nil
}
