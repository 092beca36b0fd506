package pipeline

import (
	"fmt"
	"image"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/dudu/headcut/internal/compositor"
	"github.com/dudu/headcut/internal/detector"
	"github.com/dudu/headcut/internal/geometry"
	"github.com/dudu/headcut/internal/imageio"
	"github.com/dudu/headcut/internal/inference"
	"github.com/dudu/headcut/internal/logger"
	"github.com/dudu/headcut/internal/segment"
	"github.com/dudu/headcut/internal/swapper"
)

// Pipeline cuts heads out of images and swaps faces between them.
type Pipeline struct {
	config   Config
	detector detector.Detector
	matcher  *swapper.ColorMatcher
	blender  *swapper.Blender
}

// New creates a pipeline with the detector selected by config.Detector. It
// runs Setup first.
func New(config Config) (*Pipeline, error) {
	if config.Detector.Threads == 0 {
		config.Detector.Threads = Threads()
	}
	det, err := detector.New(config.Detector)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	return NewWithDetector(det, config), nil
}

// NewWithDetector creates a pipeline around an existing detector. The
// pipeline takes ownership of det.
func NewWithDetector(det detector.Detector, config Config) *Pipeline {
	return &Pipeline{
		config:   config,
		detector: det,
		matcher:  swapper.NewColorMatcher(),
		blender:  swapper.NewBlender(config.BlurSize),
	}
}

// ProcessFace decodes the image at path and returns one cutout per detected
// face, in detector order.
func (p *Pipeline) ProcessFace(path string) ([]FaceResult, error) {
	start := time.Now()

	img, err := imageio.Load(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	faces, err := p.detect(img)
	if err != nil {
		return nil, err
	}

	results, err := p.ExtractFaces(img, faces)
	if err != nil {
		return nil, err
	}
	logger.Info("faces extracted",
		logger.LoggerOptions{Key: "path", Data: path},
		logger.LoggerOptions{Key: "faces", Data: len(results)},
		logger.LoggerOptions{Key: "elapsed", Data: time.Since(start)},
	)
	return results, nil
}

// ExtractFaces runs framing, segmentation and compositing for every face in
// parallel. img is only read. If any face fails the whole batch fails with
// the error of the earliest failing face.
func (p *Pipeline) ExtractFaces(img gocv.Mat, faces []detector.Face) ([]FaceResult, error) {
	results := make([]FaceResult, len(faces))
	errs := make([]error, len(faces))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, face := range faces {
		g.Go(func() error {
			results[i], errs[i] = p.extractFace(img, face)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
	}
	return results, nil
}

func (p *Pipeline) extractFace(img gocv.Mat, face detector.Face) (FaceResult, error) {
	faceRect := face.Rect()
	canvasRect, err := geometry.PlanCanvas(faceRect, bounds(img), p.config.Margins)
	if err != nil {
		return nil, err
	}
	hint := geometry.PlanHint(canvasRect, faceRect, p.config.Hint)

	canvas := crop(img, canvasRect)
	defer canvas.Close()

	mask, err := segment.Segment(canvas, hint, p.config.Segment)
	if err != nil {
		return nil, err
	}
	defer mask.Close()

	rgba, err := compositor.Composite(canvas, mask)
	if err != nil {
		return nil, err
	}
	defer rgba.Close()

	cutout, err := compositor.Encode(rgba)
	if err != nil {
		return nil, err
	}
	if !p.config.Debug {
		return Cutout{Cutout: cutout}, nil
	}

	jpeg, err := annotate(canvas, canvasRect, faceRect, hint, face.Landmarks)
	if err != nil {
		logger.Warning("debug annotation failed",
			logger.LoggerOptions{Key: "face", Data: faceRect.String()},
			logger.LoggerOptions{Key: "error", Data: err.Error()},
		)
		return Cutout{Cutout: cutout}, nil
	}
	return AnnotatedCutout{Cutout: cutout, DebugJPEG: jpeg, DebugBase64: imageio.Base64(jpeg)}, nil
}

// FaceSwap blends the first face of the source image onto the first face of
// the target image. A nil strength is estimated from the skin tones; an
// explicit one is clamped to [0, swapper.MaxStrength].
func (p *Pipeline) FaceSwap(sourcePath, targetPath string, strength *float64) (SwapResult, error) {
	src, err := imageio.Load(sourcePath)
	if err != nil {
		return SwapResult{}, fmt.Errorf("source: %w", err)
	}
	defer src.Close()

	dst, err := imageio.Load(targetPath)
	if err != nil {
		return SwapResult{}, fmt.Errorf("target: %w", err)
	}
	defer dst.Close()

	srcFace, err := p.firstFace(src)
	if err != nil {
		return SwapResult{}, fmt.Errorf("source: %w", err)
	}
	dstFace, err := p.firstFace(dst)
	if err != nil {
		return SwapResult{}, fmt.Errorf("target: %w", err)
	}

	return p.swap(src, dst, srcFace.Rect(), dstFace.Rect(), strength)
}

func (p *Pipeline) swap(src, dst gocv.Mat, srcRect, dstRect image.Rectangle, strength *float64) (SwapResult, error) {
	// zero margins only validate and clip the target face
	dstRect, err := geometry.PlanCanvas(dstRect, bounds(dst), geometry.Margins{})
	if err != nil {
		return SwapResult{}, fmt.Errorf("target: %w", err)
	}
	canvasRect, err := geometry.PlanCanvas(srcRect, bounds(src), p.config.Margins)
	if err != nil {
		return SwapResult{}, fmt.Errorf("source: %w", err)
	}
	hint := geometry.PlanHint(canvasRect, srcRect, p.config.Hint)

	canvas := crop(src, canvasRect)
	defer canvas.Close()

	segMask, err := segment.Segment(canvas, hint, p.config.SwapSegment)
	if err != nil {
		return SwapResult{}, fmt.Errorf("source: %w", err)
	}
	defer segMask.Close()

	local := geometry.FaceInCanvas(canvasRect, srcRect)
	faceCrop := crop(canvas, local)
	defer faceCrop.Close()
	maskCrop := crop(segMask, local)
	defer maskCrop.Close()

	size := image.Pt(dstRect.Dx(), dstRect.Dy())
	face := gocv.NewMat()
	defer face.Close()
	gocv.Resize(faceCrop, &face, size, 0, 0, gocv.InterpolationLinear)
	faceMask := gocv.NewMat()
	defer faceMask.Close()
	gocv.Resize(maskCrop, &faceMask, size, 0, 0, gocv.InterpolationLinear)

	feather, err := p.blender.BuildFeatherMask(size.X, size.Y)
	if err != nil {
		return SwapResult{}, err
	}
	defer feather.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Min(feather, faceMask, &mask)

	target := crop(dst, dstRect)
	defer target.Close()

	used := 0.0
	if strength != nil {
		used = swapper.ClampStrength(*strength)
	} else if used, err = p.matcher.EstimateStrength(face, target); err != nil {
		return SwapResult{}, err
	}

	corrected, err := p.matcher.ApplyShift(face, target, used)
	if err != nil {
		return SwapResult{}, err
	}
	defer corrected.Close()

	out := dst.Clone()
	defer out.Close()
	if err := p.blender.Blend(corrected, &out, mask, dstRect.Min.X, dstRect.Min.Y); err != nil {
		return SwapResult{}, err
	}

	png, err := imageio.EncodePNG(out)
	if err != nil {
		return SwapResult{}, err
	}
	logger.Info("face swapped",
		logger.LoggerOptions{Key: "target", Data: dstRect.String()},
		logger.LoggerOptions{Key: "strength", Data: used},
	)
	return SwapResult{
		Composite:    compositor.Cutout{PNG: png, Base64: imageio.Base64(png)},
		StrengthUsed: used,
	}, nil
}

func (p *Pipeline) detect(img gocv.Mat) ([]detector.Face, error) {
	faces, err := p.detector.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}
	return faces, nil
}

func (p *Pipeline) firstFace(img gocv.Mat) (detector.Face, error) {
	faces, err := p.detect(img)
	if err != nil {
		return detector.Face{}, err
	}
	return faces[0], nil
}

// Close releases the detector and the inference runtime.
func (p *Pipeline) Close() error {
	var err error
	if p.detector != nil {
		err = multierr.Append(err, p.detector.Close())
	}
	return multierr.Append(err, inference.Shutdown())
}

// crop copies r out of img. The copy owns its pixels and is continuous.
func crop(img gocv.Mat, r image.Rectangle) gocv.Mat {
	view := img.Region(r)
	defer view.Close()
	return view.Clone()
}

func bounds(img gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, img.Cols(), img.Rows())
}
