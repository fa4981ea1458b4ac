// Package node is the semantic perception node: it subscribes to a color image topic, segments
// every frame with the binary segmentation engine and publishes the colorized label map at the
// camera resolution, stamped with the header of the input frame.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/atomic"

	"go.viam.com/semseg/config"
	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/ml/checkpoint"
	"go.viam.com/semseg/mlmodel"
	"go.viam.com/semseg/rimage"
	"go.viam.com/semseg/ros"
	"go.viam.com/semseg/transport"
	"go.viam.com/semseg/vision/segmentation"
)

// OutputTopic is where segmented images are published.
const OutputTopic = "/semantic_image"

// Bus is the transport a node reads frames from and publishes results to.
type Bus interface {
	transport.Publisher
	Subscribe(topic string) *transport.Subscription
}

// Options are the runtime parameters of a node.
type Options struct {
	// CameraWidth and CameraHeight are the output resolution. Zero keeps the size of each input.
	CameraWidth  int
	CameraHeight int
	InputTopic   string
	OutputTopic  string
	Engine       segmentation.EngineConfig
}

// OptionsFromConfig maps startup parameters onto node options.
func OptionsFromConfig(conf *config.Config) Options {
	return Options{
		CameraWidth:  conf.CameraWidth,
		CameraHeight: conf.CameraHeight,
		InputTopic:   conf.Node.ColorImageTopic,
		OutputTopic:  OutputTopic,
		Engine: segmentation.EngineConfig{
			InputWidth:  conf.Node.InputWidth,
			InputHeight: conf.Node.InputHeight,
			Threshold:   conf.Node.Threshold,
		},
	}
}

// Node segments frames one at a time.
type Node struct {
	opts      Options
	model     mlmodel.Service
	modelName string
	engine    *segmentation.Engine
	palette   rimage.Palette
	bus       Bus
	sub       *transport.Subscription
	logger    logging.Logger

	state atomic.Int32
	stats counters
}

// NewFromService builds a node around an already loaded model, subscribes to the input topic
// and announces readiness. On success the node owns model and closes it in Close.
func NewFromService(
	ctx context.Context,
	opts Options,
	model mlmodel.Service,
	norm *checkpoint.Normalization,
	bus Bus,
	notifier ReadinessNotifier,
	logger logging.Logger,
) (*Node, error) {
	ctx, span := trace.StartSpan(ctx, "node::NewFromService")
	defer span.End()

	if opts.InputTopic == "" {
		return nil, errors.New("no input topic given")
	}
	if opts.OutputTopic == "" {
		opts.OutputTopic = OutputTopic
	}
	if opts.CameraWidth < 0 || opts.CameraHeight < 0 {
		return nil, errors.Errorf("invalid camera size %dx%d", opts.CameraWidth, opts.CameraHeight)
	}

	n := &Node{
		opts:    opts,
		model:   model,
		palette: rimage.ColorMap(segmentation.NumClasses),
		bus:     bus,
		logger:  logger,
	}
	n.state.Store(int32(StateInitializing))

	engine, err := segmentation.NewEngine(ctx, model, norm, opts.Engine, logger.Sublogger("engine"))
	if err != nil {
		return nil, err
	}
	n.engine = engine
	n.opts.Engine = engine.Config()
	if md, err := model.Metadata(ctx); err == nil {
		n.modelName = md.ModelName
	}

	colors := make([]string, segmentation.NumClasses)
	for class := range colors {
		colors[class] = n.palette.Hex(class)
	}
	logger.Infow("class colors", "colors", colors)

	n.sub = bus.Subscribe(opts.InputTopic)
	if notifier != nil {
		info := ReadinessInfo{
			InputTopic:   n.opts.InputTopic,
			OutputTopic:  n.opts.OutputTopic,
			CameraWidth:  n.opts.CameraWidth,
			CameraHeight: n.opts.CameraHeight,
			InputWidth:   n.opts.Engine.InputWidth,
			InputHeight:  n.opts.Engine.InputHeight,
			Model:        n.modelName,
			ClassColors:  colors,
		}
		if err := notifier.NotifyReady(ctx, info); err != nil {
			n.sub.Close()
			return nil, errors.Wrap(err, "cannot announce readiness")
		}
	}
	n.state.Store(int32(StateRunning))
	logger.Infow("perception node ready", "input", n.opts.InputTopic, "output", n.opts.OutputTopic)
	return n, nil
}

// State returns the lifecycle state.
func (n *Node) State() State {
	return State(n.state.Load())
}

// Options returns the node's options with defaults applied.
func (n *Node) Options() Options {
	return n.opts
}

// Stats returns a snapshot of the counters.
func (n *Node) Stats() Stats {
	return Stats{
		State:           n.State().String(),
		Received:        n.stats.received.Load(),
		Published:       n.stats.published.Load(),
		Dropped:         n.sub.Drops(),
		DecodeErrors:    n.stats.decodeErrors.Load(),
		InferenceErrors: n.stats.inferenceErrors.Load(),
		PublishErrors:   n.stats.publishErrors.Load(),
		InvalidLabels:   n.stats.invalidLabels.Load(),
		MeanConfidence:  n.stats.meanConfidence.Load(),
		LastSeq:         n.stats.lastSeq.Load(),
		LastStamp:       n.stats.lastStamp.Load(),
		LastLatency:     float64(n.stats.lastLatency.Load()) / float64(time.Millisecond),
	}
}

// Run processes frames until ctx is done or the subscription is closed. A frame taken before
// cancellation is processed to the end. Frames that fail are logged and dropped.
func (n *Node) Run(ctx context.Context) error {
	defer n.state.Store(int32(StateStopped))
	for {
		msg, err := n.sub.Next(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := n.HandleFrame(context.WithoutCancel(ctx), msg); err != nil {
			n.logger.Warnw("dropping frame",
				"seq", msg.Header.Seq,
				"stamp", msg.Header.Stamp.Time(),
				"frame_id", msg.Header.FrameID,
				"error", err,
			)
		}
	}
}

// HandleFrame segments one image message and publishes the result.
func (n *Node) HandleFrame(ctx context.Context, msg *ros.Image) error {
	ctx, span := trace.StartSpan(ctx, "node::HandleFrame")
	defer span.End()
	start := time.Now()
	n.stats.received.Inc()

	frame, err := ros.ImageToFrame(msg)
	if err != nil {
		n.stats.decodeErrors.Inc()
		return newFrameError(StageDecode, msg, err)
	}

	confidence, labels, err := n.engine.Predict(ctx, frame)
	if err != nil {
		n.stats.inferenceErrors.Inc()
		return newFrameError(StageInference, msg, err)
	}

	width, height := n.opts.CameraWidth, n.opts.CameraHeight
	if width == 0 || height == 0 {
		width, height = frame.Width, frame.Height
	}
	labels, err = segmentation.ResizeLabels(labels, width, height)
	if err != nil {
		n.stats.inferenceErrors.Inc()
		return newFrameError(StageInference, msg, err)
	}
	confidence, err = segmentation.ResizeConfidence(confidence, width, height)
	if err != nil {
		n.stats.inferenceErrors.Inc()
		return newFrameError(StageInference, msg, err)
	}

	colored, invalid := segmentation.DecodeWithStats(labels, segmentation.NumClasses, n.palette)
	if invalid > 0 {
		n.stats.invalidLabels.Add(uint64(invalid))
		n.logger.Debugw("labels outside of the class range painted as background", "seq", msg.Header.Seq, "count", invalid)
	}

	out, err := ros.FrameToImage(colored, msg.Header)
	if err != nil {
		n.stats.publishErrors.Inc()
		return newFrameError(StagePublish, msg, err)
	}
	if err := n.bus.Publish(ctx, n.opts.OutputTopic, out); err != nil {
		n.stats.publishErrors.Inc()
		return newFrameError(StagePublish, msg, err)
	}

	latency := time.Since(start)
	n.stats.published.Inc()
	n.stats.meanConfidence.Store(confidence.Mean())
	n.stats.lastSeq.Store(msg.Header.Seq)
	n.stats.lastStamp.Store(msg.Header.Stamp.Time())
	n.stats.lastLatency.Store(latency)
	n.logger.CDebugw(ctx, "published segmentation", "seq", msg.Header.Seq, "latency", latency)
	return nil
}

// Close stops the subscription and releases the model.
func (n *Node) Close(ctx context.Context) error {
	n.sub.Close()
	n.state.Store(int32(StateStopped))
	return n.model.Close(ctx)
}

// Stage names the step of frame processing that failed.
type Stage string

// The stages of frame processing.
const (
	StageDecode    Stage = "decode"
	StageInference Stage = "inference"
	StagePublish   Stage = "publish"
)

// FrameError is returned by HandleFrame when a frame is dropped.
type FrameError struct {
	Stage  Stage
	Header ros.Header
	Err    error
}

func newFrameError(stage Stage, msg *ros.Image, err error) *FrameError {
	fe := &FrameError{Stage: stage, Err: err}
	if msg != nil {
		fe.Header = msg.Header
	}
	return fe
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s failed for frame %d: %v", e.Stage, e.Header.Seq, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
