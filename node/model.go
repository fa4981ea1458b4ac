package node

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/semseg/config"
	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/ml"
	"go.viam.com/semseg/ml/checkpoint"
	"go.viam.com/semseg/mlmodel/onnxrt"
	"go.viam.com/semseg/vision/segmentation"
)

// LoadCheckpoint reads the checkpoint at path, maps its keys onto graph parameter names and
// extracts the input normalization. Every name in required must be present after mapping.
func LoadCheckpoint(path string, required []string, logger logging.Logger) (checkpoint.Checkpoint, *checkpoint.Normalization, error) {
	cp, err := checkpoint.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger.Debugw("checkpoint loaded", "path", path, "entries", len(cp))
	cp, err = checkpoint.DefaultKeyMapping.Apply(cp, required)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "checkpoint %q does not fit the graph", path)
	}
	norm, ok, err := checkpoint.ExtractNormalization(cp)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "checkpoint %q", path)
	}
	if !ok {
		return nil, nil, errors.Wrapf(segmentation.ErrNoNormalization, "checkpoint %q", path)
	}
	return cp, norm, nil
}

// New loads the checkpoint and graph named by conf, builds the onnxruntime session and then
// the node. Any failure is fatal to startup.
func New(
	ctx context.Context,
	conf *config.Config,
	bus Bus,
	notifier ReadinessNotifier,
	logger logging.Logger,
) (*Node, error) {
	opts := OptionsFromConfig(conf)
	inputName := segmentation.DefaultInputName

	md, err := onnxrt.ReadMetadata(conf.Node.OnnxruntimeLibrary, conf.GraphPath())
	if err != nil {
		return nil, err
	}
	required := md.InputNames(inputName)
	logger.Debugw("graph parameters", "graph", conf.GraphPath(), "count", len(required))

	cp, norm, err := LoadCheckpoint(conf.ModelPath(), required, logger)
	if err != nil {
		return nil, err
	}

	device, err := onnxrt.ParseDevice(conf.Node.Device)
	if err != nil {
		return nil, err
	}
	model, err := onnxrt.NewModel(ctx, onnxrt.Config{
		GraphPath:         conf.GraphPath(),
		SharedLibraryPath: conf.Node.OnnxruntimeLibrary,
		Device:            device,
		NumThreads:        conf.Node.NumThreads,
		InputName:         inputName,
		InputShape:        opts.Engine.InputShape(),
	}, ml.Tensors(cp), logger.Sublogger("onnxrt"))
	if err != nil {
		return nil, err
	}

	n, err := NewFromService(ctx, opts, model, norm, bus, notifier, logger)
	if err != nil {
		return nil, multierr.Combine(err, model.Close(ctx))
	}
	return n, nil
}
