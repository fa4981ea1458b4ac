package segmentation

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/ml"
	"go.viam.com/semseg/ml/checkpoint"
	"go.viam.com/semseg/mlmodel"
	"go.viam.com/semseg/rimage"
)

// Default network input size, in pixels.
const (
	DefaultInputWidth  = 256
	DefaultInputHeight = 320
)

// DefaultInputName is the tensor name the image batch is fed under.
const DefaultInputName = "input"

// ErrNoNormalization is returned when an engine is built without input statistics.
var ErrNoNormalization = errors.New("checkpoint carries no input normalization (mean/std)")

// EngineConfig holds the fixed parameters of an Engine. Zero values select the defaults.
type EngineConfig struct {
	InputWidth  int
	InputHeight int
	// Threshold is the probability a pixel must exceed to be labeled; nil selects
	// DefaultThreshold. An explicit 0 labels every pixel with a positive probability.
	Threshold *float32
	InputName string
	// OutputName selects the logits tensor when the model produces more than one.
	OutputName string
}

func (conf *EngineConfig) setDefaults() {
	if conf.InputWidth <= 0 {
		conf.InputWidth = DefaultInputWidth
	}
	if conf.InputHeight <= 0 {
		conf.InputHeight = DefaultInputHeight
	}
	if conf.Threshold == nil {
		threshold := float32(DefaultThreshold)
		conf.Threshold = &threshold
	}
	if conf.InputName == "" {
		conf.InputName = DefaultInputName
	}
}

// InputShape returns the NCHW shape of the image batch the engine feeds the model.
func (conf EngineConfig) InputShape() []int {
	conf.setDefaults()
	return []int{1, 3, conf.InputHeight, conf.InputWidth}
}

// Engine runs the binary segmenter on single frames. Its state is fixed at construction.
type Engine struct {
	model     mlmodel.Service
	norm      checkpoint.Normalization
	conf      EngineConfig
	threshold float32
	logger    logging.Logger
}

// NewEngine wraps a loaded model. Normalization is required and must cover three channels.
// Models whose metadata declares more than one output channel are rejected.
func NewEngine(
	ctx context.Context,
	model mlmodel.Service,
	norm *checkpoint.Normalization,
	conf EngineConfig,
	logger logging.Logger,
) (*Engine, error) {
	if model == nil {
		return nil, errors.New("no model given")
	}
	if norm == nil {
		return nil, ErrNoNormalization
	}
	if norm.Channels() != 3 || len(norm.Std) != 3 {
		return nil, errors.Errorf("normalization must cover 3 channels, got mean %v std %v", norm.Mean, norm.Std)
	}
	conf.setDefaults()

	md, err := model.Metadata(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read model metadata")
	}
	for _, out := range md.Outputs {
		if conf.OutputName != "" && out.Name != conf.OutputName {
			continue
		}
		if len(out.Shape) == 4 && out.Shape[1] > 1 {
			return nil, errors.Errorf("output %q has %d channels, binary segmentation needs 1", out.Name, out.Shape[1])
		}
	}

	logger.Infow("segmentation engine ready",
		"input_width", conf.InputWidth,
		"input_height", conf.InputHeight,
		"threshold", *conf.Threshold,
		"mean", norm.Mean,
		"std", norm.Std,
	)
	return &Engine{model: model, norm: *norm, conf: conf, threshold: *conf.Threshold, logger: logger}, nil
}

// Config returns the engine's parameters with defaults applied.
func (e *Engine) Config() EngineConfig {
	conf := e.conf
	threshold := e.threshold
	conf.Threshold = &threshold
	return conf
}

// Predict segments one BGR frame. Both maps have the network input size; labels are 1 where the
// target probability exceeds the threshold and 0 elsewhere.
func (e *Engine) Predict(ctx context.Context, frame *rimage.Frame) (*ConfidenceMap, *LabelMap, error) {
	ctx, span := trace.StartSpan(ctx, "segmentation::Engine::Predict")
	defer span.End()

	w, h := e.conf.InputWidth, e.conf.InputHeight
	resized, err := rimage.ResizeToFloat(frame, w, h)
	if err != nil {
		return nil, nil, err
	}
	input, err := ml.NewFloat32Tensor(e.toCHW(resized), 1, 3, h, w)
	if err != nil {
		return nil, nil, err
	}

	outputs, err := e.model.Infer(ctx, ml.Tensors{e.conf.InputName: input})
	if err != nil {
		return nil, nil, errors.Wrap(err, "inference failed")
	}
	name, err := mlmodel.SelectOutput(outputs, e.conf.OutputName)
	if err != nil {
		return nil, nil, err
	}
	logits, err := ml.Float32Data(outputs[name])
	if err != nil {
		return nil, nil, err
	}
	if len(logits) != w*h {
		return nil, nil, errors.Errorf("output %q has %d values, expected %dx%d", name, len(logits), w, h)
	}

	probs, err := ml.Sigmoid(logits)
	if err != nil {
		return nil, nil, err
	}
	conf := &ConfidenceMap{Width: w, Height: h, Values: probs}
	labels := NewLabelMap(w, h)
	for i, p := range probs {
		if p > e.threshold {
			labels.Labels[i] = 1
		}
	}
	return conf, labels, nil
}

// toCHW normalizes an HWC image per channel and lays it out channel-major.
func (e *Engine) toCHW(img *rimage.FloatImage) []float32 {
	plane := img.Width * img.Height
	out := make([]float32, 3*plane)
	for i := 0; i < plane; i++ {
		for c := 0; c < 3; c++ {
			out[c*plane+i] = (img.Pix[i*3+c] - e.norm.Mean[c]) / e.norm.Std[c]
		}
	}
	return out
}
