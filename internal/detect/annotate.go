package detect

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	colorWhite = color.RGBA{R: 255, G: 255, B: 255}
	colorGreen = color.RGBA{G: 255}
	colorRed   = color.RGBA{R: 255}
)

// Annotate returns a copy of the frame with bounding boxes, centroids and
// area labels drawn for each detection. The caller owns the returned Mat.
func Annotate(frame *gocv.Mat, detections []Detection) gocv.Mat {
	annotated := frame.Clone()

	for _, d := range detections {
		gocv.Rectangle(&annotated, d.Bounds, colorGreen, 2)
		gocv.Circle(&annotated, d.Centroid, 5, colorRed, -1)

		label := fmt.Sprintf("%dpx", int(d.Area))
		origin := image.Pt(d.Bounds.Min.X, d.Bounds.Min.Y-10)
		gocv.PutText(&annotated, label, origin, gocv.FontHersheySimplex, 0.5, colorGreen, 2)
	}

	return annotated
}
