package node

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// State is the lifecycle state of a Node.
type State int32

// The states of a Node.
const (
	StateInitializing State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ReadinessInfo describes a node that finished initializing.
type ReadinessInfo struct {
	InputTopic   string   `json:"input_topic"`
	OutputTopic  string   `json:"output_topic"`
	CameraWidth  int      `json:"camera_width"`
	CameraHeight int      `json:"camera_height"`
	InputWidth   int      `json:"input_width"`
	InputHeight  int      `json:"input_height"`
	Model        string   `json:"model"`
	ClassColors  []string `json:"class_colors"`
}

// ReadinessNotifier is told once the node is ready to take frames.
type ReadinessNotifier interface {
	NotifyReady(ctx context.Context, info ReadinessInfo) error
}

// Stats is a snapshot of a node's counters.
type Stats struct {
	State           string    `json:"state"`
	Received        uint64    `json:"received"`
	Published       uint64    `json:"published"`
	Dropped         uint64    `json:"dropped"`
	DecodeErrors    uint64    `json:"decode_errors"`
	InferenceErrors uint64    `json:"inference_errors"`
	PublishErrors   uint64    `json:"publish_errors"`
	InvalidLabels   uint64    `json:"invalid_labels"`
	MeanConfidence  float64   `json:"mean_confidence"`
	LastSeq         uint32    `json:"last_seq"`
	LastStamp       time.Time `json:"last_stamp"`
	LastLatency     float64   `json:"last_latency_ms"`
}

// counters are shared between the frame loop and readers such as the web server.
type counters struct {
	received        atomic.Uint64
	published       atomic.Uint64
	decodeErrors    atomic.Uint64
	inferenceErrors atomic.Uint64
	publishErrors   atomic.Uint64
	invalidLabels   atomic.Uint64
	meanConfidence  atomic.Float64
	lastSeq         atomic.Uint32
	lastStamp       atomic.Time
	lastLatency     atomic.Duration
}
