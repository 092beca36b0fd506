package pipeline

import (
	"runtime"
	"testing"

	"gocv.io/x/gocv"
)

func TestSetupUsesEveryCPU(t *testing.T) {
	Setup()
	Setup()

	if got, want := Threads(), runtime.NumCPU(); got != want {
		t.Errorf("Threads() = %d, want %d", got, want)
	}
	if got := gocv.GetNumThreads(); got != runtime.NumCPU() {
		t.Errorf("OpenCV threads = %d, want %d", got, runtime.NumCPU())
	}
	if got := runtime.GOMAXPROCS(0); got != runtime.NumCPU() {
		t.Errorf("GOMAXPROCS = %d, want %d", got, runtime.NumCPU())
	}
}
