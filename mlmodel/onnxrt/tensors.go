package onnxrt

import (
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"go.viam.com/semseg/ml"
	"go.viam.com/semseg/mlmodel"
)

// Device selects the execution provider.
type Device string

// Known devices. DeviceAuto uses CUDA when the runtime offers it and the CPU otherwise.
const (
	DeviceAuto = Device("auto")
	DeviceCPU  = Device("cpu")
	DeviceCUDA = Device("cuda")
)

// ParseDevice accepts auto, cpu and cuda (or cuda:0); empty means auto.
func ParseDevice(s string) (Device, error) {
	switch d := strings.ToLower(strings.TrimSpace(s)); {
	case d == "" || d == string(DeviceAuto):
		return DeviceAuto, nil
	case d == string(DeviceCPU):
		return DeviceCPU, nil
	case d == string(DeviceCUDA) || strings.HasPrefix(d, "cuda:"):
		return DeviceCUDA, nil
	default:
		return "", errors.Errorf("unknown device %q, expected auto, cpu or cuda", s)
	}
}

func shapeOf(dims []int) ort.Shape {
	shape := make([]int64, len(dims))
	for i, d := range dims {
		shape[i] = int64(d)
	}
	return ort.NewShape(shape...)
}

// resolveShape fills the dynamic (negative) dimensions of declared. The batch dimension becomes 1
// and the others are taken from hint when it has the same rank. With strict set, static
// dimensions must agree with hint as well.
func resolveShape(declared, hint []int, strict bool) ([]int, error) {
	if len(declared) == 0 {
		return nil, errors.New("graph declares no dimensions")
	}
	sameRank := len(hint) == len(declared)
	if strict && len(hint) != 0 && !sameRank {
		return nil, errors.Errorf("shape %v does not match graph shape %v", hint, declared)
	}
	out := make([]int, len(declared))
	for i, d := range declared {
		switch {
		case d >= 0:
			if strict && sameRank && hint[i] > 0 && hint[i] != d {
				return nil, errors.Errorf("shape %v does not match graph shape %v", hint, declared)
			}
			out[i] = d
		case sameRank && hint[i] > 0:
			out[i] = hint[i]
		case i == 0:
			out[i] = 1
		default:
			return nil, errors.Errorf("cannot resolve dynamic dimension %d of %v", i, declared)
		}
	}
	return out, nil
}

func pickOutput(md mlmodel.MLMetadata, name string) (mlmodel.TensorInfo, error) {
	if name != "" {
		info, ok := md.Output(name)
		if !ok {
			return mlmodel.TensorInfo{}, errors.Errorf("graph has no output named %q", name)
		}
		return info, nil
	}
	if len(md.Outputs) != 1 {
		names := make([]string, 0, len(md.Outputs))
		for _, info := range md.Outputs {
			names = append(names, info.Name)
		}
		return mlmodel.TensorInfo{}, errors.Errorf("graph has %d outputs %v, name the one to use", len(md.Outputs), names)
	}
	return md.Outputs[0], nil
}

func checkParamShape(declared []int, actual tensor.Shape) error {
	if len(declared) != len(actual) {
		return errors.Errorf("checkpoint shape %v does not match graph shape %v", actual, declared)
	}
	for i, d := range declared {
		if d >= 0 && d != actual[i] {
			return errors.Errorf("checkpoint shape %v does not match graph shape %v", actual, declared)
		}
	}
	return nil
}

// newParamTensor copies a checkpoint value into a runtime tensor of the type the graph declares.
func newParamTensor(info mlmodel.TensorInfo, value *tensor.Dense) (ort.ArbitraryTensor, error) {
	if value == nil {
		return nil, errors.New("parameter is nil")
	}
	shape := value.Shape()
	if err := checkParamShape(info.Shape, shape); err != nil {
		return nil, err
	}
	switch info.DataType {
	case "float32":
		data, err := ml.Float32Data(value)
		if err != nil {
			return nil, err
		}
		return ort.NewTensor(shapeOf(shape), append([]float32(nil), data...))
	case "int64":
		data, err := int64Data(value)
		if err != nil {
			return nil, err
		}
		return ort.NewTensor(shapeOf(shape), data)
	default:
		return nil, errors.Errorf("unsupported parameter type %q", info.DataType)
	}
}

func int64Data(value *tensor.Dense) ([]int64, error) {
	switch v := value.Data().(type) {
	case []int64:
		return append([]int64(nil), v...), nil
	case []int32:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	case []int:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	default:
		return nil, errors.Errorf("cannot use %T as int64 parameter", v)
	}
}
