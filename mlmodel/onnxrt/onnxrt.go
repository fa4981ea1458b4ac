// Package onnxrt runs ONNX graphs with onnxruntime, as an implementation of the ML model service.
// Trained parameters are not baked into the graph: the graph takes them as extra inputs, and they
// are bound once from a checkpoint when the model is built.
package onnxrt

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"gorgonia.org/tensor"

	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/ml"
	"go.viam.com/semseg/mlmodel"
)

// DefaultInputName is the name of the image input of exported segmentation graphs.
const DefaultInputName = "input"

// Config contains the parameters of an onnxruntime model.
type Config struct {
	GraphPath string
	// SharedLibraryPath points at libonnxruntime; empty uses the loader's default search.
	SharedLibraryPath string
	Device            Device
	// NumThreads bounds intra-op parallelism; zero lets onnxruntime decide.
	NumThreads int
	// InputName is the graph input receiving the image batch. Every other graph input is a
	// parameter bound from the checkpoint.
	InputName string
	// InputShape is the shape of the image batch, e.g. [1, 3, 320, 256].
	InputShape []int
	// OutputName selects the output when the graph has more than one.
	OutputName string
}

// Model is a loaded onnxruntime session with its parameters bound.
type Model struct {
	conf     Config
	logger   logging.Logger
	metadata mlmodel.MLMetadata

	mu          sync.Mutex
	session     *ort.AdvancedSession
	input       *ort.Tensor[float32]
	output      *ort.Tensor[float32]
	outputName  string
	outputShape []int
	params      []ort.ArbitraryTensor
	closed      bool
}

var _ mlmodel.Service = (*Model)(nil)

// ReadMetadata lists the inputs and outputs of a graph without building a session.
func ReadMetadata(sharedLibraryPath, graphPath string) (mlmodel.MLMetadata, error) {
	if err := acquireEnvironment(sharedLibraryPath); err != nil {
		return mlmodel.MLMetadata{}, err
	}
	defer func() {
		//nolint:errcheck
		releaseEnvironment()
	}()
	return readMetadata(graphPath)
}

func readMetadata(graphPath string) (mlmodel.MLMetadata, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(graphPath)
	if err != nil {
		return mlmodel.MLMetadata{}, errors.Wrapf(err, "cannot read graph %q", graphPath)
	}
	md := mlmodel.MLMetadata{
		ModelName: graphPath,
		ModelType: "onnx",
		Inputs:    make([]mlmodel.TensorInfo, 0, len(inputs)),
		Outputs:   make([]mlmodel.TensorInfo, 0, len(outputs)),
	}
	for _, info := range inputs {
		md.Inputs = append(md.Inputs, tensorInfo(info))
	}
	for _, info := range outputs {
		md.Outputs = append(md.Outputs, tensorInfo(info))
	}
	return md, nil
}

func tensorInfo(info ort.InputOutputInfo) mlmodel.TensorInfo {
	shape := make([]int, len(info.Dimensions))
	for i, d := range info.Dimensions {
		shape[i] = int(d)
	}
	return mlmodel.TensorInfo{
		Name:     info.Name,
		DataType: dataTypeName(info.DataType),
		Shape:    shape,
	}
}

func dataTypeName(dt ort.TensorElementDataType) string {
	switch dt { //nolint:exhaustive
	case ort.TensorElementDataTypeFloat:
		return "float32"
	case ort.TensorElementDataTypeDouble:
		return "float64"
	case ort.TensorElementDataTypeInt64:
		return "int64"
	case ort.TensorElementDataTypeInt32:
		return "int32"
	case ort.TensorElementDataTypeUint8:
		return "uint8"
	default:
		return "unsupported"
	}
}

// NewModel builds a session for conf.GraphPath and binds every non-image graph input to the
// parameter of the same name. Parameters the graph does not take are ignored.
func NewModel(ctx context.Context, conf Config, params ml.Tensors, logger logging.Logger) (*Model, error) {
	_, span := trace.StartSpan(ctx, "mlmodel::onnxrt::NewModel")
	defer span.End()

	if conf.GraphPath == "" {
		return nil, errors.New("no graph path given")
	}
	if conf.InputName == "" {
		conf.InputName = DefaultInputName
	}
	device, err := ParseDevice(string(conf.Device))
	if err != nil {
		return nil, err
	}
	conf.Device = device
	if err := acquireEnvironment(conf.SharedLibraryPath); err != nil {
		return nil, err
	}

	m := &Model{conf: conf, logger: logger}
	if err := m.build(params); err != nil {
		return nil, multierr.Combine(err, m.destroy())
	}
	return m, nil
}

func (m *Model) build(params ml.Tensors) error {
	md, err := readMetadata(m.conf.GraphPath)
	if err != nil {
		return err
	}
	m.metadata = md

	imageInfo, ok := md.Input(m.conf.InputName)
	if !ok {
		return errors.Errorf("graph has no input named %q, inputs are %v", m.conf.InputName, md.InputNames())
	}
	inputShape, err := resolveShape(imageInfo.Shape, m.conf.InputShape, true)
	if err != nil {
		return errors.Wrapf(err, "input %q", m.conf.InputName)
	}
	m.input, err = ort.NewEmptyTensor[float32](shapeOf(inputShape))
	if err != nil {
		return errors.Wrap(err, "cannot allocate input tensor")
	}

	outputInfo, err := pickOutput(md, m.conf.OutputName)
	if err != nil {
		return err
	}
	m.outputName = outputInfo.Name
	m.outputShape, err = resolveShape(outputInfo.Shape, inputShape, false)
	if err != nil {
		return errors.Wrapf(err, "output %q", outputInfo.Name)
	}
	m.output, err = ort.NewEmptyTensor[float32](shapeOf(m.outputShape))
	if err != nil {
		return errors.Wrap(err, "cannot allocate output tensor")
	}

	inputNames := []string{m.conf.InputName}
	inputs := []ort.ArbitraryTensor{m.input}
	bound := map[string]bool{}
	for _, info := range md.Inputs {
		if info.Name == m.conf.InputName {
			continue
		}
		value, ok := params[info.Name]
		if !ok {
			return errors.Errorf("graph input %q has no parameter in the checkpoint", info.Name)
		}
		t, err := newParamTensor(info, value)
		if err != nil {
			return errors.Wrapf(err, "cannot bind parameter %q", info.Name)
		}
		m.params = append(m.params, t)
		inputNames = append(inputNames, info.Name)
		inputs = append(inputs, t)
		bound[info.Name] = true
	}
	for _, name := range params.Names() {
		if !bound[name] {
			m.logger.Debugw("checkpoint entry not used by the graph", "name", name)
		}
	}

	options, err := m.sessionOptions()
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck
		options.Destroy()
	}()

	m.session, err = ort.NewAdvancedSession(m.conf.GraphPath,
		inputNames, []string{m.outputName},
		inputs, []ort.ArbitraryTensor{m.output},
		options)
	if err != nil {
		return errors.Wrapf(err, "failed to create onnxruntime session for %q", m.conf.GraphPath)
	}
	m.logger.Infow("onnxruntime session ready",
		"graph", m.conf.GraphPath,
		"device", m.conf.Device,
		"parameters", len(m.params),
		"input_shape", inputShape,
		"output", m.outputName,
	)
	return nil
}

func (m *Model) sessionOptions() (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create session options")
	}
	if m.conf.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(m.conf.NumThreads); err != nil {
			return nil, multierr.Combine(errors.Wrap(err, "cannot set thread count"), options.Destroy())
		}
	}
	if m.conf.Device == DeviceCPU {
		return options, nil
	}
	if err := appendCUDA(options); err != nil {
		if m.conf.Device == DeviceCUDA {
			return nil, multierr.Combine(errors.Wrap(err, "cuda requested but unavailable"), options.Destroy())
		}
		m.logger.Warnw("cuda unavailable, running on cpu", "error", err)
	}
	return options, nil
}

func appendCUDA(options *ort.SessionOptions) error {
	cudaOptions, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck
		cudaOptions.Destroy()
	}()
	if err := cudaOptions.Update(map[string]string{"device_id": "0"}); err != nil {
		return err
	}
	return options.AppendExecutionProviderCUDA(cudaOptions)
}

// Infer copies the image tensor into the session, runs it, and returns the selected output.
func (m *Model) Infer(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error) {
	_, span := trace.StartSpan(ctx, "mlmodel::onnxrt::Infer")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in, ok := tensors[m.conf.InputName]
	if !ok {
		return nil, errors.Errorf("no tensor named %q among input tensors %v", m.conf.InputName, tensors.Names())
	}
	data, err := ml.Float32Data(in)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("model is closed")
	}
	dst := m.input.GetData()
	if len(data) != len(dst) {
		return nil, errors.Errorf("input %q has %d values, graph expects shape %v", m.conf.InputName, len(data), m.input.GetShape())
	}
	copy(dst, data)
	if err := m.session.Run(); err != nil {
		return nil, errors.Wrapf(err, "couldn't infer from graph %q", m.conf.GraphPath)
	}
	out := make([]float32, len(m.output.GetData()))
	copy(out, m.output.GetData())
	return ml.Tensors{
		m.outputName: tensor.New(tensor.WithShape(m.outputShape...), tensor.WithBacking(out)),
	}, nil
}

// Metadata returns the graph's inputs and outputs.
func (m *Model) Metadata(ctx context.Context) (mlmodel.MLMetadata, error) {
	_, span := trace.StartSpan(ctx, "mlmodel::onnxrt::Metadata")
	defer span.End()
	return m.metadata, nil
}

// Close destroys the session and every tensor bound to it.
func (m *Model) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.destroy()
}

func (m *Model) destroy() error {
	var err error
	if m.session != nil {
		err = multierr.Combine(err, m.session.Destroy())
		m.session = nil
	}
	for _, t := range m.params {
		err = multierr.Combine(err, t.Destroy())
	}
	m.params = nil
	if m.input != nil {
		err = multierr.Combine(err, m.input.Destroy())
		m.input = nil
	}
	if m.output != nil {
		err = multierr.Combine(err, m.output.Destroy())
		m.output = nil
	}
	return multierr.Combine(err, releaseEnvironment())
}
