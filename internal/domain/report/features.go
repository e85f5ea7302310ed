package report

import "encoding/json"

// Shape is a two-dimensional size (rows×cols or height×width).
type Shape [2]int

// Default shapes sent to the comparator when the extractor did not report one.
var (
	DefaultDescriptorsShape = Shape{0, 128}
	DefaultImageShape       = Shape{0, 0}
)

// FeatureBundle is the opaque image descriptor representation attached to a report.
// Immutable once attached.
type FeatureBundle struct {
	descriptors      string
	descriptorsShape Shape
	keypointsCount   int
	keypoints        []json.RawMessage
	imageShape       Shape
}

// NewFeatureBundle creates a FeatureBundle. Keypoints are copied.
func NewFeatureBundle(
	descriptors string, descriptorsShape Shape, keypointsCount int,
	keypoints []json.RawMessage, imageShape Shape,
) FeatureBundle {
	kp := make([]json.RawMessage, len(keypoints))
	copy(kp, keypoints)
	return FeatureBundle{
		descriptors:      descriptors,
		descriptorsShape: descriptorsShape,
		keypointsCount:   keypointsCount,
		keypoints:        kp,
		imageShape:       imageShape,
	}
}

// Empty reports whether the bundle carries no descriptors.
func (f FeatureBundle) Empty() bool { return f.descriptors == "" }

// Descriptors returns the opaque descriptor blob.
func (f FeatureBundle) Descriptors() string { return f.descriptors }

// DescriptorsShape returns the descriptor matrix shape, defaulting to [0,128].
func (f FeatureBundle) DescriptorsShape() Shape {
	if f.descriptorsShape == (Shape{}) {
		return DefaultDescriptorsShape
	}
	return f.descriptorsShape
}

// KeypointsCount returns the number of detected keypoints.
func (f FeatureBundle) KeypointsCount() int { return f.keypointsCount }

// Keypoints returns the raw keypoint list.
func (f FeatureBundle) Keypoints() []json.RawMessage { return f.keypoints }

// ImageShape returns the source image shape, defaulting to [0,0].
func (f FeatureBundle) ImageShape() Shape { return f.imageShape }
