// Package segmentation turns network output into per-pixel class labels and renders them as
// color images.
package segmentation

import (
	"github.com/pkg/errors"
)

// NumClasses is the number of classes of the binary segmenter: background and target.
const NumClasses = 2

// DefaultThreshold is the probability above which a pixel is labeled as the target class.
const DefaultThreshold = 0.4

// LabelMap holds one class id per pixel, row-major.
type LabelMap struct {
	Width  int
	Height int
	Labels []int16
}

// NewLabelMap returns a map of the given size with every pixel labeled 0.
func NewLabelMap(width, height int) *LabelMap {
	return &LabelMap{Width: width, Height: height, Labels: make([]int16, width*height)}
}

// NewLabelMapFromSlice wraps labels, which must hold width*height values.
func NewLabelMapFromSlice(width, height int, labels []int16) (*LabelMap, error) {
	if width <= 0 || height <= 0 || len(labels) != width*height {
		return nil, errors.Errorf("cannot make a %dx%d label map from %d labels", width, height, len(labels))
	}
	return &LabelMap{Width: width, Height: height, Labels: labels}, nil
}

// At returns the label at (x, y).
func (lm *LabelMap) At(x, y int) int16 {
	return lm.Labels[y*lm.Width+x]
}

// Set sets the label at (x, y).
func (lm *LabelMap) Set(x, y int, label int16) {
	lm.Labels[y*lm.Width+x] = label
}

// Count returns how many pixels carry label.
func (lm *LabelMap) Count(label int16) int {
	n := 0
	for _, l := range lm.Labels {
		if l == label {
			n++
		}
	}
	return n
}

// ConfidenceMap holds the target-class probability of each pixel, row-major, in [0, 1].
type ConfidenceMap struct {
	Width  int
	Height int
	Values []float32
}

// NewConfidenceMap returns a map of the given size filled with zeros.
func NewConfidenceMap(width, height int) *ConfidenceMap {
	return &ConfidenceMap{Width: width, Height: height, Values: make([]float32, width*height)}
}

// At returns the confidence at (x, y).
func (cm *ConfidenceMap) At(x, y int) float32 {
	return cm.Values[y*cm.Width+x]
}

// Mean returns the average confidence, or 0 for an empty map.
func (cm *ConfidenceMap) Mean() float64 {
	if len(cm.Values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range cm.Values {
		sum += float64(v)
	}
	return sum / float64(len(cm.Values))
}
