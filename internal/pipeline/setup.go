package pipeline

import (
	"runtime"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dudu/headcut/internal/logger"
)

var (
	setupOnce sync.Once
	threads   int
)

// Setup sizes OpenCV's thread pool and the Go scheduler to every CPU. It runs
// once per process; New calls it, and later calls are no-ops.
func Setup() {
	setupOnce.Do(func() {
		threads = runtime.NumCPU()
		runtime.GOMAXPROCS(threads)
		// zero would turn OpenCV threading off
		gocv.SetNumThreads(threads)
		logger.Debug("pipeline setup", logger.LoggerOptions{Key: "threads", Data: threads})
	})
}

// Threads returns the worker count chosen by Setup.
func Threads() int {
	Setup()
	return threads
}
