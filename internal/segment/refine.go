package segment

import (
	"image"

	"gocv.io/x/gocv"
)

const (
	bilateralDiameter = 9
	bilateralSigma    = 50
	claheClipLimit    = 2.0
	claheTiles        = 8
)

// refine cleans a 0/255 mask: opening, closing, optional distance tightening,
// optional feather. The returned mask is owned by the caller.
func refine(binary gocv.Mat, opt Options) (gocv.Mat, error) {
	opened, err := morph(binary, gocv.MorphOpen, opt.OpenKernel)
	if err != nil {
		return gocv.NewMat(), err
	}
	closed, err := morph(opened, gocv.MorphClose, opt.CloseKernel)
	opened.Close()
	if err != nil {
		return gocv.NewMat(), err
	}

	out := closed
	if opt.DistanceRefine {
		tightened, err := tighten(closed, opt.DistanceCutoff)
		closed.Close()
		if err != nil {
			return gocv.NewMat(), err
		}
		out = tightened
	}

	if opt.FeatherKernel > 0 {
		k := odd(opt.FeatherKernel)
		feathered := gocv.NewMat()
		err := gocv.GaussianBlur(out, &feathered, image.Pt(k, k), 0, 0, gocv.BorderDefault)
		out.Close()
		if err != nil {
			feathered.Close()
			return gocv.NewMat(), wrap("feather", err)
		}
		out = feathered
	}
	return out, nil
}

func morph(src gocv.Mat, op gocv.MorphType, size int) (gocv.Mat, error) {
	dst := gocv.NewMat()
	if size <= 1 {
		src.CopyTo(&dst)
		return dst, nil
	}
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(size, size))
	defer kernel.Close()
	if err := gocv.MorphologyEx(src, &dst, op, kernel); err != nil {
		dst.Close()
		return gocv.NewMat(), wrap("morphology", err)
	}
	return dst, nil
}

// tighten keeps only mask pixels whose distance to the nearest background
// pixel, scaled so the deepest pixel is 255, exceeds cutoff. A mask with no
// background or no foreground has no edge to measure from and is returned as is.
func tighten(mask gocv.Mat, cutoff float64) (gocv.Mat, error) {
	area := mask.Rows() * mask.Cols()
	if n := gocv.CountNonZero(mask); n == 0 || n == area {
		return mask.Clone(), nil
	}

	dist := gocv.NewMat()
	defer dist.Close()
	labels := gocv.NewMat()
	defer labels.Close()
	if err := gocv.DistanceTransform(mask, &dist, &labels, gocv.DistL2, gocv.DistanceMask5, gocv.DistanceLabelCComp); err != nil {
		return gocv.NewMat(), wrap("distance transform", err)
	}

	normalized := gocv.NewMat()
	defer normalized.Close()
	if err := gocv.Normalize(dist, &normalized, 0, 255, gocv.NormMinMax); err != nil {
		return gocv.NewMat(), wrap("normalize", err)
	}

	depth := gocv.NewMat()
	defer depth.Close()
	normalized.ConvertTo(&depth, gocv.MatTypeCV8U)

	core := gocv.NewMat()
	defer core.Close()
	gocv.Threshold(depth, &core, float32(cutoff), 255, gocv.ThresholdBinary)

	out := gocv.NewMat()
	if err := gocv.BitwiseAnd(mask, core, &out); err != nil {
		out.Close()
		return gocv.NewMat(), wrap("tighten", err)
	}
	return out, nil
}

// preprocess smooths noise while keeping edges, then equalises local contrast
// on the Y channel of YCrCb. Chroma is left alone.
func preprocess(canvas gocv.Mat) (gocv.Mat, error) {
	smooth := gocv.NewMat()
	defer smooth.Close()
	gocv.BilateralFilter(canvas, &smooth, bilateralDiameter, bilateralSigma, bilateralSigma)

	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	if err := gocv.CvtColor(smooth, &ycrcb, gocv.ColorBGRToYCrCb); err != nil {
		return gocv.NewMat(), wrap("to YCrCb", err)
	}

	channels := gocv.Split(ycrcb)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	if len(channels) != 3 {
		return gocv.NewMat(), fail("expected 3 channels after colour conversion, got %d", len(channels))
	}

	clahe := gocv.NewCLAHEWithParams(claheClipLimit, image.Pt(claheTiles, claheTiles))
	defer clahe.Close()
	luma := gocv.NewMat()
	if err := clahe.Apply(channels[0], &luma); err != nil {
		luma.Close()
		return gocv.NewMat(), wrap("equalize luma", err)
	}
	channels[0].Close()
	channels[0] = luma

	merged := gocv.NewMat()
	defer merged.Close()
	if err := gocv.Merge(channels, &merged); err != nil {
		return gocv.NewMat(), wrap("merge", err)
	}

	out := gocv.NewMat()
	if err := gocv.CvtColor(merged, &out, gocv.ColorYCrCbToBGR); err != nil {
		out.Close()
		return gocv.NewMat(), wrap("to BGR", err)
	}
	return out, nil
}

func odd(k int) int {
	if k%2 == 0 {
		return k + 1
	}
	return k
}
