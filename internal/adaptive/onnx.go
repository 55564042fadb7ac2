package adaptive

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXCrossEncoder scores (query, text) pairs with an ONNX
// pair-scoring model (e.g. a distilled MiniLM cross-encoder exported
// to ONNX). Tokenization is caller-provided (Tokenize) so this
// package stays independent of any one tokenizer.
type ONNXCrossEncoder struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	// Tokenize turns a (query, text) pair into the int64 input-id
	// sequence the model expects, including any [CLS]/[SEP] framing.
	Tokenize   func(query, text string) ([]int64, error)
	inputName  string
	outputName string
}

// NewONNXCrossEncoder loads a pair-scoring model from modelPath. If
// libraryPath is non-empty it's passed to the ONNX runtime shared
// library loader; numThreads <= 0 means runtime-default parallelism.
// Any failure here is recoverable: callers should treat a
// non-nil error as "use the hash-embed fallback", never as fatal.
func NewONNXCrossEncoder(modelPath, libraryPath string, numThreads int, inputName, outputName string, tokenize func(string, string) ([]int64, error)) (*ONNXCrossEncoder, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx session options: %w", err)
	}
	defer opts.Destroy()
	if numThreads > 0 {
		_ = opts.SetIntraOpNumThreads(numThreads)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{inputName}, []string{outputName}, opts)
	if err != nil {
		return nil, fmt.Errorf("load onnx model %s: %w", modelPath, err)
	}

	return &ONNXCrossEncoder{
		session:    session,
		Tokenize:   tokenize,
		inputName:  inputName,
		outputName: outputName,
	}, nil
}

// Score runs one forward pass and returns the model's pair-relevance
// score. Any tokenization or inference error is returned as-is; the
// caller (CrossEncoderRerank) is responsible for falling back.
func (c *ONNXCrossEncoder) Score(_ context.Context, query, text string) (float64, error) {
	if c == nil || c.session == nil {
		return 0, fmt.Errorf("adaptive: onnx cross-encoder not loaded")
	}
	ids, err := c.Tokenize(query, text)
	if err != nil {
		return 0, fmt.Errorf("tokenize: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	inputShape := ort.NewShape(1, int64(len(ids)))
	input, err := ort.NewTensor(inputShape, ids)
	if err != nil {
		return 0, fmt.Errorf("build input tensor: %w", err)
	}
	defer input.Destroy()

	outputShape := ort.NewShape(1, 1)
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return 0, fmt.Errorf("build output tensor: %w", err)
	}
	defer output.Destroy()

	if err := c.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return 0, fmt.Errorf("run inference: %w", err)
	}

	data := output.GetData()
	if len(data) == 0 {
		return 0, fmt.Errorf("empty onnx output")
	}
	return sigmoid(float64(data[0])), nil
}

// Close releases the underlying ONNX session.
func (c *ONNXCrossEncoder) Close() error {
	if c == nil || c.session == nil {
		return nil
	}
	return c.session.Destroy()
}

var _ CrossEncoder = (*ONNXCrossEncoder)(nil)
