package detector

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

const (
	cascadeScaleFactor  = 1.1
	cascadeMinNeighbors = 5
	cascadeMinSize      = 30
)

// Cascade is a Haar cascade frontal face detector.
type Cascade struct {
	classifier gocv.CascadeClassifier
	mu         sync.Mutex
}

// NewCascade loads a cascade classifier XML file.
func NewCascade(path string) (*Cascade, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: cascade %s: %v", ErrUnavailable, path, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("%w: failed to load cascade %s", ErrUnavailable, path)
	}

	return &Cascade{classifier: classifier}, nil
}

// Detect returns faces in reading order. Haar cascades give no confidence, so Score is 1.
func (c *Cascade) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, fmt.Errorf("detect: empty image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(img, &gray, gocv.ColorBGRToGray); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	c.mu.Lock()
	rects := c.classifier.DetectMultiScaleWithParams(gray,
		cascadeScaleFactor, cascadeMinNeighbors, 0,
		image.Pt(cascadeMinSize, cascadeMinSize), image.Pt(0, 0))
	c.mu.Unlock()

	faces := make([]Face, 0, len(rects))
	for _, r := range rects {
		faces = append(faces, FaceFromRect(r))
	}
	order(faces)
	return faces, nil
}

// Close releases the classifier
func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifier.Close()
}
