//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errONNXRequiresCGO = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXEmbedder stub type when built without CGO (see onnx.go).
type ONNXEmbedder struct{}

// NewONNXEmbedder returns an error when built without CGO.
func NewONNXEmbedder(_ string, _, _, _ int) (*ONNXEmbedder, error) {
	return nil, errONNXRequiresCGO
}

// Embed is unreachable without CGO; NewONNXEmbedder never returns an instance.
func (e *ONNXEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errONNXRequiresCGO
}

// EmbedBatch is unreachable without CGO; NewONNXEmbedder never returns an instance.
func (e *ONNXEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errONNXRequiresCGO
}

// Dimensions is unreachable without CGO; NewONNXEmbedder never returns an instance.
func (e *ONNXEmbedder) Dimensions() int { return 0 }

// Close is unreachable without CGO; NewONNXEmbedder never returns an instance.
func (e *ONNXEmbedder) Close() error { return nil }
