package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samber/lo"
	"go.viam.com/test"

	"go.viam.com/semseg/logging"
)

const nestedParams = `
camera:
  width: 640
  height: 480
semantic_pcl:
  model_path: models/segnet.npz
  color_image_topic: /camera/color/image_raw
  install_dir: ${SEMSEG_TEST_INSTALL}
  num_threads: "2"
`

func TestParamsFromYAML(t *testing.T) {
	params, err := ParamsFromYAML([]byte(nestedParams))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Names(), test.ShouldResemble, []string{
		"/camera/height",
		"/camera/width",
		"/semantic_pcl/color_image_topic",
		"/semantic_pcl/install_dir",
		"/semantic_pcl/model_path",
		"/semantic_pcl/num_threads",
	})
	width, err := params.GetInt(CameraWidthParam)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, width, test.ShouldEqual, 640)
	threads, err := params.GetInt("/semantic_pcl/num_threads")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, threads, test.ShouldEqual, 2)
	topic, err := params.GetString(ColorTopicParam)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, topic, test.ShouldEqual, "/camera/color/image_raw")

	_, err = params.GetInt("/camera/fps")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = params.GetInt(ColorTopicParam)
	test.That(t, err, test.ShouldNotBeNil)

	flat, err := ParamsFromYAML([]byte("/camera/width: 640\n/camera/height: 480\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, flat.Names(), test.ShouldResemble, []string{"/camera/height", "/camera/width"})

	empty, err := ParamsFromYAML(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty, test.ShouldBeEmpty)

	_, err = ParamsFromYAML([]byte("camera: [unterminated"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestJoin(t *testing.T) {
	test.That(t, Join("", "camera"), test.ShouldEqual, "/camera")
	test.That(t, Join("/camera", "width"), test.ShouldEqual, "/camera/width")
	test.That(t, Join("/camera/", "/width"), test.ShouldEqual, "/camera/width")
	test.That(t, Join("", "/semantic_pcl/model_path"), test.ShouldEqual, "/semantic_pcl/model_path")
}

func TestParamsSetAndNamespace(t *testing.T) {
	params := Params{}
	test.That(t, params.Set("/camera/width=1280"), test.ShouldBeNil)
	test.That(t, params.Set("semantic_pcl/device=cuda"), test.ShouldBeNil)
	test.That(t, params.Set("/semantic_pcl/record_dir="), test.ShouldBeNil)
	test.That(t, params.Set("no-equals"), test.ShouldNotBeNil)
	test.That(t, params.Set("=1"), test.ShouldNotBeNil)

	test.That(t, params["/camera/width"], test.ShouldEqual, 1280)
	test.That(t, params["/semantic_pcl/device"], test.ShouldEqual, "cuda")
	test.That(t, params["/semantic_pcl/record_dir"], test.ShouldEqual, "")

	ns := params.Namespace(NodeNamespace)
	test.That(t, ns, test.ShouldResemble, map[string]interface{}{"device": "cuda", "record_dir": ""})
	test.That(t, params.Namespace(CameraNamespace), test.ShouldResemble, map[string]interface{}{"width": 1280})
	test.That(t, params.Describe(), test.ShouldContainSubstring, "/camera/width: 1280\n")
}

func TestFromParams(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	params, err := ParamsFromYAML([]byte(nestedParams + "  colour: red\n"))
	test.That(t, err, test.ShouldBeNil)

	conf, err := FromParams(params, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.CameraWidth, test.ShouldEqual, 640)
	test.That(t, conf.CameraHeight, test.ShouldEqual, 480)
	test.That(t, conf.Node.ModelPath, test.ShouldEqual, "models/segnet.npz")
	test.That(t, conf.Node.NumThreads, test.ShouldEqual, 2)
	test.That(t, conf.Validate(), test.ShouldBeNil)
	test.That(t, logs.FilterMessage("unused parameter").Len(), test.ShouldEqual, 1)

	params["/camera/width"] = "wide"
	_, err = FromParams(params, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidate(t *testing.T) {
	conf := &Config{}
	err := conf.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	for _, name := range []string{CameraWidthParam, CameraHeightParam, ModelPathParam, ColorTopicParam} {
		test.That(t, err.Error(), test.ShouldContainSubstring, name)
	}

	conf = &Config{CameraWidth: 640, CameraHeight: 480, Node: NodeParams{ModelPath: "m.npz", ColorImageTopic: "/c"}}
	test.That(t, conf.Validate(), test.ShouldBeNil)

	bad := *conf
	bad.CameraWidth = -1
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
	bad = *conf
	bad.Node.NumThreads = -1
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
	bad = *conf
	bad.Node.InputHeight = -5
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
	bad = *conf
	bad.Node.Threshold = lo.ToPtr(float32(1))
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
	bad = *conf
	bad.Node.Threshold = lo.ToPtr(float32(-0.1))
	test.That(t, bad.Validate(), test.ShouldNotBeNil)

	zero := *conf
	zero.Node.Threshold = lo.ToPtr(float32(0))
	test.That(t, zero.Validate(), test.ShouldBeNil)
}

func TestThresholdParam(t *testing.T) {
	logger := logging.NewTestLogger(t)
	params, err := ParamsFromYAML([]byte(nestedParams))
	test.That(t, err, test.ShouldBeNil)
	conf, err := FromParams(params, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Node.Threshold, test.ShouldBeNil)

	test.That(t, params.Set("/semantic_pcl/threshold=0"), test.ShouldBeNil)
	conf, err = FromParams(params, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Node.Threshold, test.ShouldNotBeNil)
	test.That(t, *conf.Node.Threshold, test.ShouldEqual, float32(0))
	test.That(t, conf.Validate(), test.ShouldBeNil)

	test.That(t, params.Set("/semantic_pcl/threshold=0.25"), test.ShouldBeNil)
	conf, err = FromParams(params, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *conf.Node.Threshold, test.ShouldAlmostEqual, 0.25, 1e-6)
}

func TestPaths(t *testing.T) {
	conf := &Config{Node: NodeParams{ModelPath: "models/segnet.npz"}}
	test.That(t, conf.ModelPath(), test.ShouldEqual, "models/segnet.npz")
	test.That(t, conf.GraphPath(), test.ShouldEqual, "models/segnet.onnx")
	test.That(t, conf.WebAddress(), test.ShouldEqual, DefaultWebAddress)

	conf.Node.InstallDir = "/opt/semseg"
	test.That(t, conf.ModelPath(), test.ShouldEqual, "/opt/semseg/models/segnet.npz")
	test.That(t, conf.GraphPath(), test.ShouldEqual, "/opt/semseg/models/segnet.onnx")

	conf.Node.GraphPath = "graphs/segnet.onnx"
	test.That(t, conf.GraphPath(), test.ShouldEqual, "/opt/semseg/graphs/segnet.onnx")
	conf.Node.GraphPath = "/tmp/g.onnx"
	test.That(t, conf.GraphPath(), test.ShouldEqual, "/tmp/g.onnx")
	conf.Node.ModelPath = "/data/m.npz"
	test.That(t, conf.ModelPath(), test.ShouldEqual, "/data/m.npz")
}

func TestRead(t *testing.T) {
	logger := logging.NewTestLogger(t)
	t.Setenv("SEMSEG_TEST_INSTALL", "/opt/semseg")
	path := filepath.Join(t.TempDir(), "params.yaml")
	test.That(t, os.WriteFile(path, []byte(nestedParams), 0o600), test.ShouldBeNil)

	conf, err := Read(path, []string{"/semantic_pcl/device=cpu", "/camera/width=1280"}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Node.InstallDir, test.ShouldEqual, "/opt/semseg")
	test.That(t, conf.Node.Device, test.ShouldEqual, "cpu")
	test.That(t, conf.CameraWidth, test.ShouldEqual, 1280)
	test.That(t, conf.ModelPath(), test.ShouldEqual, "/opt/semseg/models/segnet.npz")

	_, err = Read(path, []string{"bogus"}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	missing := filepath.Join(t.TempDir(), "partial.yaml")
	test.That(t, os.WriteFile(missing, []byte("camera:\n  width: 640\n"), 0o600), test.ShouldBeNil)
	_, err = Read(missing, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, strings.Contains(err.Error(), ModelPathParam), test.ShouldBeTrue)

	_, err = Read(filepath.Join(t.TempDir(), "nope.yaml"), nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
