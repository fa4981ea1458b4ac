package mlmodel

import (
	"testing"

	"go.viam.com/test"
	"gorgonia.org/tensor"

	"go.viam.com/semseg/ml"
)

func TestMetadataLookup(t *testing.T) {
	md := MLMetadata{
		Inputs: []TensorInfo{
			{Name: "input", DataType: "float32", Shape: []int{1, 3, 320, 256}},
			{Name: "encoder.conv1.weight", DataType: "float32"},
			{Name: "decoder.bias", DataType: "float32"},
		},
		Outputs: []TensorInfo{{Name: "logits", DataType: "float32", Shape: []int{1, 1, 320, 256}}},
	}

	in, ok := md.Input("input")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, in.Shape, test.ShouldResemble, []int{1, 3, 320, 256})
	_, ok = md.Input("nope")
	test.That(t, ok, test.ShouldBeFalse)

	out, ok := md.Output("logits")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, out.DataType, test.ShouldEqual, "float32")

	test.That(t, md.InputNames("input"), test.ShouldResemble, []string{"encoder.conv1.weight", "decoder.bias"})
	test.That(t, md.InputNames(), test.ShouldHaveLength, 3)
}

func TestSelectOutput(t *testing.T) {
	one := tensor.New(tensor.WithShape(1), tensor.WithBacking([]float32{1}))

	name, err := SelectOutput(ml.Tensors{"logits": one}, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, name, test.ShouldEqual, "logits")

	name, err = SelectOutput(ml.Tensors{"out:0": one}, "logits")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, name, test.ShouldEqual, "out:0")

	name, err = SelectOutput(ml.Tensors{"a": one, "logits": one}, "logits")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, name, test.ShouldEqual, "logits")

	_, err = SelectOutput(ml.Tensors{"a": one, "b": one}, "logits")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "[a b]")
}
