// Package inference owns the process-wide ONNX Runtime environment and the
// sessions created in it.
package inference

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/headcut/internal/logger"
)

// ErrNotInitialized is returned by NewSession before Initialize succeeded.
var ErrNotInitialized = errors.New("onnx runtime not initialized")

var (
	initialized bool
	initMu      sync.Mutex
)

// Initialize loads the runtime library and creates the environment. Calls
// after the first successful one are no-ops, whatever libraryPath they pass.
func Initialize(libraryPath string) error {
	initMu.Lock()
	defer initMu.Unlock()
	if initialized {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx runtime %q: %w", libraryPath, err)
	}
	initialized = true
	return nil
}

// Ready reports whether Initialize has succeeded.
func Ready() bool {
	initMu.Lock()
	defer initMu.Unlock()
	return initialized
}

// Shutdown destroys the environment. It is safe to call when Initialize never ran.
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()
	if !initialized {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}
	initialized = false
	return nil
}

// Options tunes a session.
type Options struct {
	// Threads bounds intra-op parallelism. Zero lets the runtime decide.
	Threads int
	// CPUOnly skips the CoreML execution provider.
	CPUOnly bool
}

// providers in preference order
const (
	providerCoreML = "coreml"
	providerCPU    = "cpu"
)

// Session is one loaded model. Run is not safe for concurrent use.
type Session struct {
	run      *ort.DynamicAdvancedSession
	model    string
	provider string
}

// NewSession loads model with the named inputs and outputs.
func NewSession(model string, inputs, outputs []string, opt Options) (*Session, error) {
	if !Ready() {
		return nil, ErrNotInitialized
	}

	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer so.Destroy()

	if opt.Threads > 0 {
		if err := so.SetIntraOpNumThreads(opt.Threads); err != nil {
			return nil, fmt.Errorf("session threads: %w", err)
		}
	}

	provider := providerCPU
	if !opt.CPUOnly && so.AppendExecutionProviderCoreML(0) == nil {
		provider = providerCoreML
	}

	run, err := ort.NewDynamicAdvancedSession(model, inputs, outputs, so)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", model, err)
	}
	logger.Info("onnx session",
		logger.LoggerOptions{Key: "model", Data: model},
		logger.LoggerOptions{Key: "provider", Data: provider},
		logger.LoggerOptions{Key: "threads", Data: opt.Threads},
	)
	return &Session{run: run, model: model, provider: provider}, nil
}

// Provider names the execution provider the session runs on.
func (s *Session) Provider() string { return s.provider }

// Run executes the model.
func (s *Session) Run(inputs, outputs []ort.Value) error {
	if err := s.run.Run(inputs, outputs); err != nil {
		return fmt.Errorf("run %s: %w", s.model, err)
	}
	return nil
}

// Destroy releases the session.
func (s *Session) Destroy() error {
	if s == nil || s.run == nil {
		return nil
	}
	return s.run.Destroy()
}

// Zeros allocates a zero-filled float32 tensor of the given shape.
func Zeros(shape ...int64) (*ort.Tensor[float32], error) {
	s := ort.NewShape(shape...)
	return ort.NewTensor(s, make([]float32, s.FlattenedSize()))
}
