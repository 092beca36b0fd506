package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrUnavailable is returned when a detector's model resource cannot be loaded.
var ErrUnavailable = errors.New("face detector unavailable")

// Backend selects the detector implementation.
type Backend string

const (
	BackendCascade Backend = "cascade"
	BackendSCRFD   Backend = "scrfd"
)

// Detector finds faces in a BGR image. Implementations are safe for concurrent use.
type Detector interface {
	Detect(img gocv.Mat) ([]Face, error)
	Close() error
}

// Config holds detector configuration
type Config struct {
	Backend       Backend
	CascadePath   string
	SCRFDPath     string
	ORTLibrary    string // onnxruntime shared library, SCRFD only
	DetectionSize int
	ConfThreshold float32
	NMSThreshold  float32
	// Threads bounds inference parallelism, SCRFD only. Zero lets the runtime decide.
	Threads int
}

// DefaultConfig returns the cascade configuration used by the desktop shell.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendCascade,
		CascadePath:   "haarcascade_frontalface_default.xml",
		SCRFDPath:     "models/scrfd_10g.onnx",
		ORTLibrary:    "lib/libonnxruntime.so",
		DetectionSize: 640,
		ConfThreshold: 0.5,
		NMSThreshold:  0.4,
	}
}

// New creates the detector selected by config.Backend.
func New(config Config) (Detector, error) {
	switch config.Backend {
	case BackendCascade, "":
		return NewCascade(config.CascadePath)
	case BackendSCRFD:
		return NewSCRFD(config)
	default:
		return nil, fmt.Errorf("unknown detector backend %q (use %q or %q)", config.Backend, BackendCascade, BackendSCRFD)
	}
}
