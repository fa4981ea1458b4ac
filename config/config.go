// Package config reads the node's startup parameters from a ROS-style parameter file.
package config

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/semseg/logging"
)

// Parameter names and namespaces.
const (
	CameraNamespace = "/camera"
	NodeNamespace   = "/semantic_pcl"

	CameraWidthParam  = "/camera/width"
	CameraHeightParam = "/camera/height"
	ModelPathParam    = "/semantic_pcl/model_path"
	ColorTopicParam   = "/semantic_pcl/color_image_topic"
)

// DefaultWebAddress is where the readiness and debug endpoints listen when unset.
const DefaultWebAddress = "localhost:8080"

// NodeParams are the parameters under /semantic_pcl.
type NodeParams struct {
	ModelPath          string   `mapstructure:"model_path"`
	ColorImageTopic    string   `mapstructure:"color_image_topic"`
	GraphPath          string   `mapstructure:"graph_path"`
	InstallDir         string   `mapstructure:"install_dir"`
	Device             string   `mapstructure:"device"`
	NumThreads         int      `mapstructure:"num_threads"`
	InputWidth         int      `mapstructure:"input_width"`
	InputHeight        int      `mapstructure:"input_height"`
	Threshold          *float32 `mapstructure:"threshold"`
	WebAddress         string   `mapstructure:"web_address"`
	RecordDir          string   `mapstructure:"record_dir"`
	OnnxruntimeLibrary string   `mapstructure:"onnxruntime_library"`
	Debug              bool     `mapstructure:"debug"`
}

// Config is the node's startup configuration.
type Config struct {
	CameraWidth  int
	CameraHeight int
	Node         NodeParams
}

// FromParams builds a Config out of a parameter snapshot. Unknown parameters under the node's
// namespace are logged and otherwise ignored. The result still needs Validate.
func FromParams(params Params, logger logging.Logger) (*Config, error) {
	conf := &Config{}
	var err error
	if params.Has(CameraWidthParam) {
		if conf.CameraWidth, err = params.GetInt(CameraWidthParam); err != nil {
			return nil, err
		}
	}
	if params.Has(CameraHeightParam) {
		if conf.CameraHeight, err = params.GetInt(CameraHeightParam); err != nil {
			return nil, err
		}
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           &conf.Node,
		Metadata:         &md,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to make decoder")
	}
	if err := decoder.Decode(params.Namespace(NodeNamespace)); err != nil {
		return nil, errors.Wrapf(err, "cannot decode %s parameters", NodeNamespace)
	}
	sort.Strings(md.Unused)
	for _, name := range md.Unused {
		logger.Warnw("unused parameter", "name", Join(NodeNamespace, name))
	}
	return conf, nil
}

// Read reads and validates the parameter file at path, applying overrides of the form
// "/name=value" on top of it.
func Read(path string, overrides []string, logger logging.Logger) (*Config, error) {
	params, err := ReadParams(path)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		if err := params.Set(o); err != nil {
			return nil, err
		}
	}
	logger.Debugw("parameters", "params", params.Describe())
	conf, err := FromParams(params, logger)
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate reports every missing required parameter at once.
func (c *Config) Validate() error {
	var missing []string
	if c.CameraWidth == 0 {
		missing = append(missing, CameraWidthParam)
	}
	if c.CameraHeight == 0 {
		missing = append(missing, CameraHeightParam)
	}
	if c.Node.ModelPath == "" {
		missing = append(missing, ModelPathParam)
	}
	if c.Node.ColorImageTopic == "" {
		missing = append(missing, ColorTopicParam)
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	if c.CameraWidth < 0 || c.CameraHeight < 0 {
		return errors.Errorf("camera size must be positive, got %dx%d", c.CameraWidth, c.CameraHeight)
	}
	if c.Node.NumThreads < 0 {
		return utils.NewConfigValidationError(NodeNamespace, errors.New("num_threads cannot be negative"))
	}
	if c.Node.InputWidth < 0 || c.Node.InputHeight < 0 {
		return utils.NewConfigValidationError(NodeNamespace, errors.New("input size cannot be negative"))
	}
	if t := c.Node.Threshold; t != nil && (*t < 0 || *t >= 1) {
		return utils.NewConfigValidationError(NodeNamespace, errors.Errorf("threshold %v must be in [0, 1)", *t))
	}
	return nil
}

// ModelPath is the checkpoint path, resolved against the install directory when relative.
func (c *Config) ModelPath() string {
	if c.Node.InstallDir == "" || filepath.IsAbs(c.Node.ModelPath) {
		return c.Node.ModelPath
	}
	return filepath.Join(c.Node.InstallDir, c.Node.ModelPath)
}

// GraphPath is the ONNX graph path; it defaults to the checkpoint path with an .onnx extension.
func (c *Config) GraphPath() string {
	graph := c.Node.GraphPath
	if graph == "" {
		model := c.ModelPath()
		return strings.TrimSuffix(model, filepath.Ext(model)) + ".onnx"
	}
	if c.Node.InstallDir == "" || filepath.IsAbs(graph) {
		return graph
	}
	return filepath.Join(c.Node.InstallDir, graph)
}

// WebAddress is the listen address of the web server.
func (c *Config) WebAddress() string {
	if c.Node.WebAddress == "" {
		return DefaultWebAddress
	}
	return c.Node.WebAddress
}
