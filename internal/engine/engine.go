package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/facerig/internal/workflow"
)

// Session is the engine surface the orchestrator depends on.
type Session interface {
	Connect(ctx context.Context) error
	ResolveWeights(ctx context.Context, manifest []Weight) error
	Execute(ctx context.Context, g workflow.Graph) error
	ListScratchFiles(ctx context.Context, root string) ([]string, error)
}

// Weight names a model file and the models subdirectory it belongs in.
type Weight struct {
	Name string
	Dir  string
}

// DefaultManifest lists the weights the packaged template needs.
var DefaultManifest = []Weight{
	{Name: "face_yolov8n.pt", Dir: "ultralytics/bbox"},
	{Name: "appearance_feature_extractor.safetensors", Dir: "liveportrait/base_models"},
	{Name: "motion_extractor.safetensors", Dir: "liveportrait/base_models"},
	{Name: "spade_generator.safetensors", Dir: "liveportrait/base_models"},
	{Name: "stitching_retargeting_module.safetensors", Dir: "liveportrait/retargeting_models"},
	{Name: "warping_module.safetensors", Dir: "liveportrait/base_models"},
}

var (
	// ErrMissingWeight marks a manifest entry that is neither present nor
	// downloadable.
	ErrMissingWeight = errors.New("model weight not available")
	// ErrNotConnected is returned by Execute before a successful Connect.
	ErrNotConnected = errors.New("engine session not connected")
	// ErrPromptRejected is returned when the engine refuses to queue a graph.
	ErrPromptRejected = errors.New("engine rejected prompt")
)

// ExecutionError reports a failure raised by the engine while running a
// queued prompt.
type ExecutionError struct {
	PromptID string
	NodeID   string
	NodeType string
	Message  string
}

func (e *ExecutionError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("prompt %s failed: %s", e.PromptID, e.Message)
	}
	return fmt.Sprintf("prompt %s failed at node %s (%s): %s", e.PromptID, e.NodeID, e.NodeType, e.Message)
}
