//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/semdex/pkg/utils"
)

// ONNXOptions configures the ONNX Runtime embedder.
type ONNXOptions struct {
	ModelPath   string
	LibraryPath string
	Model       string
	Dimensions  int
	MaxTokens   int
}

// ONNXEmbedder runs a sentence-embedding model through ONNX Runtime. The
// session and its tensors are shared, so inference is serialized.
type ONNXEmbedder struct {
	opts      ONNXOptions
	session   *ort.AdvancedSession
	tokenizer Tokenizer

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu sync.Mutex
}

// NewONNXEmbedder loads the model at opts.ModelPath.
func NewONNXEmbedder(opts ONNXOptions) (*ONNXEmbedder, error) {
	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	e := &ONNXEmbedder{opts: opts, tokenizer: &SimpleTokenizer{}}
	if err := e.allocate(); err != nil {
		_ = e.Close()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{e.inputIDs, e.attentionMask, e.tokenTypeIDs},
		[]ort.ArbitraryTensor{e.output},
		nil,
	)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	e.session = session
	return e, nil
}

func (e *ONNXEmbedder) allocate() error {
	ids, mask, types := e.tokenizer.Tokenize("", e.opts.MaxTokens)
	inputShape := ort.NewShape(1, int64(len(ids)))

	var err error
	if e.inputIDs, err = ort.NewTensor(inputShape, ids); err != nil {
		return fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if e.attentionMask, err = ort.NewTensor(inputShape, mask); err != nil {
		return fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if e.tokenTypeIDs, err = ort.NewTensor(inputShape, types); err != nil {
		return fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	if e.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.opts.Dimensions))); err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	return nil
}

// Embed runs one inference and returns the L2-normalized output.
func (e *ONNXEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	ids, mask, types := e.tokenizer.Tokenize(text, e.opts.MaxTokens)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, fmt.Errorf("%w: onnx session closed", ErrEmbedding)
	}
	copy(e.inputIDs.GetData(), ids)
	copy(e.attentionMask.GetData(), mask)
	copy(e.tokenTypeIDs.GetData(), types)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: inference failed: %w", ErrEmbedding, err)
	}

	vec := make([]float32, e.opts.Dimensions)
	copy(vec, e.output.GetData())
	utils.NormalizeL2(vec)
	return vec, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.opts.Dimensions
}

// Name returns "onnx:<model>".
func (e *ONNXEmbedder) Name() string {
	return "onnx:" + e.opts.Model
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	destroyTensor(e.inputIDs)
	destroyTensor(e.attentionMask)
	destroyTensor(e.tokenTypeIDs)
	destroyTensor(e.output)
	e.inputIDs, e.attentionMask, e.tokenTypeIDs, e.output = nil, nil, nil, nil
	return err
}

func destroyTensor[T ort.TensorData](t *ort.Tensor[T]) {
	if t != nil {
		_ = t.Destroy()
	}
}
