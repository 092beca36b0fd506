package pipeline

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/headcut/internal/detector"
	"github.com/dudu/headcut/internal/geometry"
	"github.com/dudu/headcut/internal/imageio"
)

var (
	faceColor     = color.RGBA{G: 255, A: 255}
	hintColor     = color.RGBA{B: 255, A: 255}
	landmarkColor = color.RGBA{R: 255, A: 255}
)

// annotate draws the face, the hint and the landmarks on a copy of the
// canvas and encodes it as JPEG. Rectangles other than hint are in image
// coordinates.
func annotate(canvas gocv.Mat, canvasRect, face, hint image.Rectangle, marks *detector.Landmarks) ([]byte, error) {
	vis := canvas.Clone()
	defer vis.Close()

	gocv.Rectangle(&vis, geometry.FaceInCanvas(canvasRect, face), faceColor, 2)
	gocv.Rectangle(&vis, hint, hintColor, 1)

	if marks != nil {
		for _, pt := range marks.Points() {
			c := image.Pt(int(pt.X)-canvasRect.Min.X, int(pt.Y)-canvasRect.Min.Y)
			if !c.In(image.Rect(0, 0, vis.Cols(), vis.Rows())) {
				continue
			}
			gocv.Circle(&vis, c, 2, landmarkColor, -1)
		}
	}

	return imageio.EncodeJPEG(vis)
}
