package detector

import (
	"fmt"
	"image"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/headcut/internal/inference"
)

// SCRFD implements the SCRFD face detector
type SCRFD struct {
	session        *inference.Session
	inputSize      int
	confThreshold  float32
	nmsThreshold   float32
	featureStrides []int
	numAnchors     int
	mu             sync.Mutex
}

// NewSCRFD creates a new SCRFD detector
func NewSCRFD(config Config) (*SCRFD, error) {
	if err := inference.Initialize(config.ORTLibrary); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// SCRFD has 1 input and 9 outputs (3 levels × 3 outputs each: score, bbox, kps)
	inputNames := []string{"input.1"}
	outputNames := []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
		"kps_8", "kps_16", "kps_32",
	}

	session, err := inference.NewSession(config.SCRFDPath, inputNames, outputNames,
		inference.Options{Threads: config.Threads})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &SCRFD{
		session:        session,
		inputSize:      config.DetectionSize,
		confThreshold:  config.ConfThreshold,
		nmsThreshold:   config.NMSThreshold,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2, // anchors per position
	}, nil
}

// Detect finds faces in an image, highest score first
func (s *SCRFD) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, fmt.Errorf("detect: empty image")
	}
	origHeight := img.Rows()
	origWidth := img.Cols()

	inputBlob, scale := s.preprocess(img)
	defer inputBlob.Close()

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, int64(s.inputSize), int64(s.inputSize)),
		bytesToFloat32(inputBlob.ToBytes()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 9)
	outputTensors := make([]*ort.Tensor[float32], 9)
	defer func() {
		for _, t := range outputTensors {
			if t != nil {
				t.Destroy()
			}
		}
	}()

	for i, stride := range s.featureStrides {
		fm := s.inputSize / stride
		numAnchors := int64(fm * fm * s.numAnchors)

		for j, width := range []int64{1, 4, 10} { // score, bbox, kps
			tensor, err := inference.Zeros(numAnchors, width)
			if err != nil {
				return nil, fmt.Errorf("failed to create output tensor: %w", err)
			}
			outputs[i+3*j] = tensor
			outputTensors[i+3*j] = tensor
		}
	}

	s.mu.Lock()
	err = s.session.Run([]ort.Value{inputTensor}, outputs)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	data := make([][]float32, len(outputTensors))
	for i, t := range outputTensors {
		data[i] = t.GetData()
	}
	faces := s.decode(data, scale, origWidth, origHeight)
	return suppress(faces, s.nmsThreshold), nil
}

// preprocess letterboxes the image into the square network input
func (s *SCRFD) preprocess(img gocv.Mat) (gocv.Mat, float32) {
	height := img.Rows()
	width := img.Cols()
	scale := s.letterboxScale(width, height)

	newWidth := int(float32(width) * scale)
	newHeight := int(float32(height) * scale)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSize(s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	defer padded.Close()
	padded.SetTo(gocv.NewScalar(0, 0, 0, 0))

	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()

	// (x - 127.5) / 128.0, BGR -> RGB, HWC -> NCHW
	blob := gocv.BlobFromImage(padded, 1.0/128.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)

	return blob, scale
}

// letterboxScale maps the longer image side onto the network input.
func (s *SCRFD) letterboxScale(width, height int) float32 {
	return float32(s.inputSize) / float32(max(width, height))
}

// decode turns the nine output planes (scores, boxes, keypoints for strides
// 8, 16, 32) into faces in original image coordinates. Box and keypoint
// offsets are in stride units from the anchor centre.
func (s *SCRFD) decode(outputs [][]float32, scale float32, origWidth, origHeight int) []Face {
	var faces []Face

	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		st := float32(stride)

		scoreData := outputs[level]
		bboxData := outputs[level+3]
		kpsData := outputs[level+6]

		anchorIdx := 0
		for y := 0; y < fm; y++ {
			for x := 0; x < fm; x++ {
				for a := 0; a < s.numAnchors; a++ {
					score := sigmoid(scoreData[anchorIdx])
					if score <= s.confThreshold {
						anchorIdx++
						continue
					}

					cx := (float32(x) + 0.5) * st
					cy := (float32(y) + 0.5) * st

					// distance to edges
					b := bboxData[anchorIdx*4 : anchorIdx*4+4]
					box := BoundingBox{
						X1: clamp((cx-b[0]*st)/scale, 0, float32(origWidth)),
						Y1: clamp((cy-b[1]*st)/scale, 0, float32(origHeight)),
						X2: clamp((cx+b[2]*st)/scale, 0, float32(origWidth)),
						Y2: clamp((cy+b[3]*st)/scale, 0, float32(origHeight)),
					}

					k := kpsData[anchorIdx*10 : anchorIdx*10+10]
					pt := func(i int) Point {
						return Point{(cx + k[2*i]*st) / scale, (cy + k[2*i+1]*st) / scale}
					}

					faces = append(faces, Face{
						BoundingBox: box,
						Landmarks: &Landmarks{
							LeftEye:    pt(0),
							RightEye:   pt(1),
							Nose:       pt(2),
							LeftMouth:  pt(3),
							RightMouth: pt(4),
						},
						Score: score,
					})
					anchorIdx++
				}
			}
		}
	}

	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

func clamp(x, lo, hi float32) float32 {
	return max(lo, min(hi, x))
}

func bytesToFloat32(data []byte) []float32 {
	result := make([]float32, len(data)/4)
	for i := range result {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		result[i] = math.Float32frombits(bits)
	}
	return result
}
