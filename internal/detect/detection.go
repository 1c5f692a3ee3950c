package detect

import "image"

// Detection describes one candidate region found in a frame. Values are
// produced fresh per frame and never mutated afterwards.
type Detection struct {
	// Centroid is the region center from first-order image moments, falling
	// back to the bounding-box center for degenerate contours.
	Centroid image.Point

	// Bounds is the axis-aligned bounding box of the region.
	Bounds image.Rectangle

	// Area is the region size in pixels.
	Area float64

	// Circularity compares the region against a perfect circle: 1 is a
	// perfect circle, 0 a degenerate shape.
	Circularity float64

	// AspectRatio is bounding-box width over height, 0 when height is 0.
	AspectRatio float64
}
