package detect

import (
	"errors"
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// ErrFrameDecode is returned for a frame whose pixel buffer cannot be
// converted to HSV (nil, empty or not 3-channel BGR). The caller decides
// whether to drop the frame or abort the session.
var ErrFrameDecode = errors.New("detect: frame decode failed")

// KernelSize is the side of the square structuring element used for
// morphological cleanup.
const KernelSize = 5

// Engine turns one frame into a list of candidate regions. It is reentrant
// and stateless except for the configuration, which can be hot-swapped
// between frames; each Run reads one consistent snapshot.
type Engine struct {
	mu  sync.RWMutex
	cfg Config
}

// NewEngine creates an Engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns a snapshot of the current configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// SetConfig swaps the configuration atomically relative to Run invocations.
// Invalid configurations are rejected.
func (e *Engine) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	return nil
}

// Run detects candidate regions in a BGR frame:
//
//  1. Convert to HSV so color matching is decoupled from lighting intensity.
//  2. Binary mask of pixels inside [lower, upper] per channel, inclusive.
//  3. Morphological opening removes isolated noise, then closing fills small
//     gaps, both with a fixed 5x5 rectangular element.
//  4. External contours only; nested boundaries are ignored.
//  5. Per contour: pixel area, centroid, circularity and aspect ratio;
//     regions outside the configured area window are discarded.
//
// Detections are emitted in contour-discovery order.
func (e *Engine) Run(frame *gocv.Mat) ([]Detection, error) {
	cfg := e.Config()

	if frame == nil || frame.Empty() || frame.Channels() != 3 {
		return nil, ErrFrameDecode
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(*frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	lower := gocv.NewScalar(float64(cfg.LowerBound[0]), float64(cfg.LowerBound[1]), float64(cfg.LowerBound[2]), 0)
	upper := gocv.NewScalar(float64(cfg.UpperBound[0]), float64(cfg.UpperBound[1]), float64(cfg.UpperBound[2]), 0)
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(KernelSize, KernelSize))
	defer kernel.Close()

	// Open before close: noise removal first, then gap filling.
	cleaned := gocv.NewMat()
	defer cleaned.Close()
	gocv.MorphologyEx(mask, &cleaned, gocv.MorphOpen, kernel)
	gocv.MorphologyEx(cleaned, &cleaned, gocv.MorphClose, kernel)

	contours := gocv.FindContours(cleaned, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	// Scratch mask for per-region pixel moments.
	scratch := gocv.NewMatWithSize(cleaned.Rows(), cleaned.Cols(), gocv.MatTypeCV8UC1)
	defer scratch.Close()

	var detections []Detection
	for i := 0; i < contours.Size(); i++ {
		pts := contours.At(i)

		scratch.SetTo(gocv.NewScalar(0, 0, 0, 0))
		gocv.DrawContours(&scratch, contours, i, colorWhite, -1)
		m := gocv.Moments(scratch, true)

		area := m["m00"]
		if area < float64(cfg.MinArea) || area > float64(cfg.MaxArea) {
			continue
		}

		bounds := gocv.BoundingRect(pts)

		var centroid image.Point
		if area != 0 {
			centroid = image.Pt(
				int(math.Round(m["m10"]/area)),
				int(math.Round(m["m01"]/area)),
			)
		} else {
			centroid = image.Pt(bounds.Min.X+bounds.Dx()/2, bounds.Min.Y+bounds.Dy()/2)
		}

		perimeter := gocv.ArcLength(pts, true)
		circularity := 0.0
		if perimeter > 0 {
			circularity = 4 * math.Pi * area / (perimeter * perimeter)
		}

		aspectRatio := 0.0
		if bounds.Dy() > 0 {
			aspectRatio = float64(bounds.Dx()) / float64(bounds.Dy())
		}

		detections = append(detections, Detection{
			Centroid:    centroid,
			Bounds:      bounds,
			Area:        area,
			Circularity: circularity,
			AspectRatio: aspectRatio,
		})
	}

	return detections, nil
}
