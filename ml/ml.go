// Package ml provides some fundamental machine learning primitives.
package ml

import (
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gorgonia.org/tensor"
)

// Tensors are a map of names to tensors, used both for model inputs/outputs and for
// checkpoint parameters.
type Tensors map[string]*tensor.Dense

// Names returns all the names of the tensors, sorted.
func (t Tensors) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// number interface for converting between numbers.
type number interface {
	constraints.Integer | constraints.Float
}

// convertNumberSlice converts any number slice into another number slice.
func convertNumberSlice[T1, T2 number](t1 []T1) []T2 {
	t2 := make([]T2, len(t1))
	for i := range t1 {
		t2[i] = T2(t1[i])
	}
	return t2
}

// ToFloat32Slice converts the backing data of a tensor into a []float32. A []float32 is
// returned as is, other number types are copied.
func ToFloat32Slice(data interface{}) ([]float32, error) {
	switch v := data.(type) {
	case []float32:
		return v, nil
	case float32:
		return []float32{v}, nil
	case []float64:
		return convertNumberSlice[float64, float32](v), nil
	case float64:
		return []float32{float32(v)}, nil
	case []int:
		return convertNumberSlice[int, float32](v), nil
	case []int8:
		return convertNumberSlice[int8, float32](v), nil
	case []int16:
		return convertNumberSlice[int16, float32](v), nil
	case []int32:
		return convertNumberSlice[int32, float32](v), nil
	case []int64:
		return convertNumberSlice[int64, float32](v), nil
	case []uint8:
		return convertNumberSlice[uint8, float32](v), nil
	case []uint16:
		return convertNumberSlice[uint16, float32](v), nil
	case []uint32:
		return convertNumberSlice[uint32, float32](v), nil
	case []uint64:
		return convertNumberSlice[uint64, float32](v), nil
	default:
		return nil, errors.Errorf("dont know how to convert slice of %T into a []float32", data)
	}
}

// Sigmoid applies the logistic function to every value.
func Sigmoid(in []float32) ([]float32, error) {
	if len(in) == 0 {
		return []float32{}, nil
	}
	out, err := stats.Sigmoid(convertNumberSlice[float32, float64](in))
	if err != nil {
		return nil, err
	}
	return convertNumberSlice[float64, float32](out), nil
}

// SqueezeShape drops every dimension of size 1.
func SqueezeShape(shape []int) []int {
	out := make([]int, 0, len(shape))
	for _, d := range shape {
		if d != 1 {
			out = append(out, d)
		}
	}
	return out
}

// NewFloat32Tensor wraps data in a tensor of the given shape. The data is not copied.
func NewFloat32Tensor(data []float32, shape ...int) (*tensor.Dense, error) {
	size := 1
	for _, d := range shape {
		size *= d
	}
	if size != len(data) {
		return nil, errors.Errorf("shape %v needs %d values, got %d", shape, size, len(data))
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)), nil
}

// Float32Data returns the values of a tensor as float32, converting if needed.
func Float32Data(t *tensor.Dense) ([]float32, error) {
	if t == nil {
		return nil, errors.New("tensor is nil")
	}
	return ToFloat32Slice(t.Data())
}
