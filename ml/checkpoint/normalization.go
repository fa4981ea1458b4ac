package checkpoint

import (
	"github.com/pkg/errors"

	"go.viam.com/semseg/ml"
)

// Normalization holds per-channel input statistics, in the channel order of the frames the
// network was trained on.
type Normalization struct {
	Mean []float32
	Std  []float32
}

// Channels returns the number of channels the statistics cover.
func (n *Normalization) Channels() int {
	return len(n.Mean)
}

// ExtractNormalization reads the reserved mean and std entries with singleton dimensions
// squeezed away. ok is false when either entry is absent.
func ExtractNormalization(cp Checkpoint) (norm *Normalization, ok bool, err error) {
	meanT, hasMean := cp[MeanKey]
	stdT, hasStd := cp[StdKey]
	if !hasMean || !hasStd {
		return nil, false, nil
	}
	if len(ml.SqueezeShape(meanT.Shape())) > 1 || len(ml.SqueezeShape(stdT.Shape())) > 1 {
		return nil, false, errors.Errorf("normalization must be a vector, got mean %v std %v", meanT.Shape(), stdT.Shape())
	}
	mean, err := ml.Float32Data(meanT)
	if err != nil {
		return nil, false, errors.Wrap(err, "bad mean")
	}
	std, err := ml.Float32Data(stdT)
	if err != nil {
		return nil, false, errors.Wrap(err, "bad std")
	}
	if len(mean) == 0 || len(mean) != len(std) {
		return nil, false, errors.Errorf("mean has %d channels but std has %d", len(mean), len(std))
	}
	for c, s := range std {
		if s == 0 {
			return nil, false, errors.Errorf("std of channel %d is zero", c)
		}
	}
	return &Normalization{
		Mean: append([]float32(nil), mean...),
		Std:  append([]float32(nil), std...),
	}, true, nil
}
