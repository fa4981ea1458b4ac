package onnxrt

import (
	"context"
	"os"
	"testing"

	"go.viam.com/test"
	"gorgonia.org/tensor"

	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/mlmodel"
)

func TestParseDevice(t *testing.T) {
	for in, want := range map[string]Device{
		"":       DeviceAuto,
		"auto":   DeviceAuto,
		"CPU":    DeviceCPU,
		"cuda":   DeviceCUDA,
		"cuda:0": DeviceCUDA,
	} {
		d, err := ParseDevice(in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d, test.ShouldEqual, want)
	}
	_, err := ParseDevice("tpu")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestResolveShape(t *testing.T) {
	shape, err := resolveShape([]int{-1, 3, -1, -1}, []int{1, 3, 320, 256}, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, shape, test.ShouldResemble, []int{1, 3, 320, 256})

	shape, err = resolveShape([]int{1, 3, 320, 256}, nil, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, shape, test.ShouldResemble, []int{1, 3, 320, 256})

	_, err = resolveShape([]int{1, 3, 320, 256}, []int{1, 3, 256, 320}, true)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = resolveShape([]int{1, 3, -1, -1}, nil, true)
	test.That(t, err, test.ShouldNotBeNil)

	// outputs take their spatial size from the input, keeping their own channel count
	shape, err = resolveShape([]int{-1, 1, -1, -1}, []int{1, 3, 320, 256}, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, shape, test.ShouldResemble, []int{1, 1, 320, 256})

	_, err = resolveShape(nil, nil, false)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPickOutput(t *testing.T) {
	md := mlmodel.MLMetadata{Outputs: []mlmodel.TensorInfo{{Name: "logits"}}}
	info, err := pickOutput(md, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Name, test.ShouldEqual, "logits")

	_, err = pickOutput(md, "mask")
	test.That(t, err, test.ShouldNotBeNil)

	md.Outputs = append(md.Outputs, mlmodel.TensorInfo{Name: "aux"})
	_, err = pickOutput(md, "")
	test.That(t, err, test.ShouldNotBeNil)
	info, err = pickOutput(md, "aux")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Name, test.ShouldEqual, "aux")
}

func TestCheckParamShape(t *testing.T) {
	test.That(t, checkParamShape([]int{64, 3, 7, 7}, tensor.Shape{64, 3, 7, 7}), test.ShouldBeNil)
	test.That(t, checkParamShape([]int{-1, 3}, tensor.Shape{5, 3}), test.ShouldBeNil)
	test.That(t, checkParamShape([]int{64}, tensor.Shape{32}), test.ShouldNotBeNil)
	test.That(t, checkParamShape([]int{64}, tensor.Shape{64, 1}), test.ShouldNotBeNil)
}

func TestInt64Data(t *testing.T) {
	out, err := int64Data(tensor.New(tensor.WithShape(2), tensor.WithBacking([]int32{4, 5})))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []int64{4, 5})

	_, err = int64Data(tensor.New(tensor.WithShape(1), tensor.WithBacking([]float32{1})))
	test.That(t, err, test.ShouldNotBeNil)
}

// TestNewModelErrors needs the onnxruntime shared library; set ONNXRUNTIME_SHARED_LIBRARY_PATH to run it.
func TestNewModelErrors(t *testing.T) {
	libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	if libPath == "" {
		t.Skip("ONNXRUNTIME_SHARED_LIBRARY_PATH not set")
	}
	logger := logging.NewTestLogger(t)

	_, err := NewModel(context.Background(), Config{}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewModel(context.Background(), Config{GraphPath: "graph.onnx", Device: "tpu"}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewModel(context.Background(), Config{
		GraphPath:         "/does/not/exist.onnx",
		SharedLibraryPath: libPath,
		Device:            DeviceCPU,
	}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, envRefs, test.ShouldEqual, 0)
}
