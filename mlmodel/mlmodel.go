// Package mlmodel defines the interface of a service that takes in a map of input tensors, passes
// them through an inference engine, and returns a map of output tensors.
package mlmodel

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/semseg/ml"
)

// Service runs a trained network. Implementations must be safe for use by one caller at a time;
// callers that share a Service across goroutines serialize access themselves.
type Service interface {
	Infer(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error)
	Metadata(ctx context.Context) (MLMetadata, error)
	Close(ctx context.Context) error
}

// MLMetadata describes the tensors a model consumes and produces.
type MLMetadata struct {
	ModelName        string
	ModelType        string // e.g. binary_segmenter
	ModelDescription string
	Inputs           []TensorInfo
	Outputs          []TensorInfo
}

// TensorInfo describes one input or output tensor. Dimensions unknown until runtime are -1.
type TensorInfo struct {
	Name        string // e.g. input
	Description string
	DataType    string // e.g. float32, int64
	Shape       []int
	Extra       map[string]interface{}
}

// Input returns the input tensor with the given name.
func (mm MLMetadata) Input(name string) (TensorInfo, bool) {
	for _, info := range mm.Inputs {
		if info.Name == name {
			return info, true
		}
	}
	return TensorInfo{}, false
}

// Output returns the output tensor with the given name.
func (mm MLMetadata) Output(name string) (TensorInfo, bool) {
	for _, info := range mm.Outputs {
		if info.Name == name {
			return info, true
		}
	}
	return TensorInfo{}, false
}

// InputNames returns the names of every input except those listed in exclude.
func (mm MLMetadata) InputNames(exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	names := make([]string, 0, len(mm.Inputs))
	for _, info := range mm.Inputs {
		if !skip[info.Name] {
			names = append(names, info.Name)
		}
	}
	return names
}

// SelectOutput picks the tensor named name from outputs, or the only tensor when there is
// exactly one and name is empty or absent.
func SelectOutput(outputs ml.Tensors, name string) (string, error) {
	if name != "" {
		if _, ok := outputs[name]; ok {
			return name, nil
		}
	}
	if len(outputs) == 1 {
		for only := range outputs {
			return only, nil
		}
	}
	return "", errors.Errorf("no tensor named %q among output tensors %v", name, outputs.Names())
}
