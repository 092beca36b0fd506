// Package compositor fuses a canvas and its mask into a transparent cutout.
package compositor

import (
	"fmt"
	"runtime"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dudu/headcut/internal/imageio"
)

const outChannels = 4

// Cutout is an encoded transparent image.
type Cutout struct {
	PNG    []byte
	Base64 string
}

// rowBlock is a contiguous run of output rows owned by exactly one worker.
type rowBlock struct {
	first int    // index of the first row in the block
	pix   []byte // len(pix) == rows*stride, capacity capped at len
}

// partition cuts buf into at most parts consecutive, non-overlapping row
// blocks. Every block is a three-index slice, so no worker can grow into its
// neighbour's rows.
func partition(buf []byte, rows, stride, parts int) []rowBlock {
	parts = max(1, min(parts, rows))
	per := (rows + parts - 1) / parts

	blocks := make([]rowBlock, 0, parts)
	for first := 0; first < rows; first += per {
		last := min(first+per, rows)
		lo, hi := first*stride, last*stride
		blocks = append(blocks, rowBlock{first: first, pix: buf[lo:hi:hi]})
	}
	return blocks
}

type source struct {
	colour []byte
	alpha  []byte
	width  int // canvas width
	maskW  int
	maskH  int
}

// fill writes BGRA pixels for the rows of one block.
func (s source) fill(b rowBlock) {
	stride := s.width * outChannels
	for r := 0; r*stride < len(b.pix); r++ {
		y := b.first + r
		row := b.pix[r*stride : (r+1)*stride]
		for x := 0; x < s.width; x++ {
			ci := (y*s.width + x) * 3
			o := x * outChannels
			row[o+0] = s.colour[ci+0]
			row[o+1] = s.colour[ci+1]
			row[o+2] = s.colour[ci+2]
			if x < s.maskW && y < s.maskH {
				row[o+3] = s.alpha[y*s.maskW+x]
			} else {
				row[o+3] = 0
			}
		}
	}
}

// Composite returns a BGRA image with the canvas colour and the mask as
// alpha. The output has the canvas dimensions; canvas pixels with no
// matching mask pixel are fully transparent.
func Composite(canvas, mask gocv.Mat) (gocv.Mat, error) {
	if canvas.Empty() || canvas.Type() != gocv.MatTypeCV8UC3 {
		return gocv.NewMat(), fmt.Errorf("composite: canvas must be non-empty 8-bit BGR")
	}
	if !mask.Empty() && mask.Type() != gocv.MatTypeCV8U {
		return gocv.NewMat(), fmt.Errorf("composite: mask must be single channel 8-bit, got %v", mask.Type())
	}

	if !canvas.IsContinuous() {
		canvas = canvas.Clone()
		defer canvas.Close()
	}
	colour, err := canvas.DataPtrUint8()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("composite: read canvas: %w", err)
	}

	src := source{colour: colour, width: canvas.Cols()}
	if !mask.Empty() {
		if !mask.IsContinuous() {
			mask = mask.Clone()
			defer mask.Close()
		}
		if src.alpha, err = mask.DataPtrUint8(); err != nil {
			return gocv.NewMat(), fmt.Errorf("composite: read mask: %w", err)
		}
		src.maskW, src.maskH = mask.Cols(), mask.Rows()
	}

	out := gocv.NewMatWithSize(canvas.Rows(), canvas.Cols(), gocv.MatTypeCV8UC4)
	buf, err := out.DataPtrUint8()
	if err != nil {
		out.Close()
		return gocv.NewMat(), fmt.Errorf("composite: output buffer: %w", err)
	}

	blocks := partition(buf, canvas.Rows(), canvas.Cols()*outChannels, runtime.GOMAXPROCS(0))

	var wg sync.WaitGroup
	for _, b := range blocks {
		wg.Add(1)
		go func(b rowBlock) {
			defer wg.Done()
			src.fill(b)
		}(b)
	}
	wg.Wait()

	return out, nil
}

// Encode serializes a cutout as PNG and its base64 transport form.
func Encode(rgba gocv.Mat) (Cutout, error) {
	data, err := imageio.EncodePNG(rgba)
	if err != nil {
		return Cutout{}, err
	}
	return Cutout{PNG: data, Base64: imageio.Base64(data)}, nil
}
