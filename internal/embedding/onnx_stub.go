//go:build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCgo = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXOptions configures the ONNX Runtime embedder.
type ONNXOptions struct {
	ModelPath   string
	LibraryPath string
	Model       string
	Dimensions  int
	MaxTokens   int
}

// ONNXEmbedder is unavailable without cgo.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails when built without cgo.
func NewONNXEmbedder(_ ONNXOptions) (*ONNXEmbedder, error) {
	return nil, errNoCgo
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, errNoCgo }
func (e *ONNXEmbedder) Dimensions() int                                  { return 0 }
func (e *ONNXEmbedder) Name() string                                     { return "onnx" }
func (e *ONNXEmbedder) Close() error                                     { return nil }
