package model

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// FeatureCount is the width of the input vector the scorer expects.
const FeatureCount = 6

var errClosed = errors.New("model closed")

// ONNXScorer wraps an onnxruntime session with a [1, FeatureCount] input and
// a [1, 1] output. Score calls are serialized on the shared tensors.
type ONNXScorer struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func defaultLibraryPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "/usr/lib/libonnxruntime.so"
	}
}

func initialize(libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		libPath = defaultLibraryPath()
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// NewONNXScorer loads modelPath. libPath may be empty to use the platform
// default location of the onnxruntime library.
func NewONNXScorer(modelPath, libPath string) (*ONNXScorer, error) {
	if err := initialize(libPath); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, FeatureCount), make([]float32, FeatureCount))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &ONNXScorer{session: session, input: inputTensor, output: outputTensor}, nil
}

func (m *ONNXScorer) Score(features []float32) (float32, error) {
	if len(features) != FeatureCount {
		return 0, fmt.Errorf("expected %d features, got %d", FeatureCount, len(features))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return 0, errClosed
	}
	copy(m.input.GetData(), features)
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}
	return m.output.GetData()[0], nil
}

func (m *ONNXScorer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.input != nil {
		m.input.Destroy()
		m.input = nil
	}
	if m.output != nil {
		m.output.Destroy()
		m.output = nil
	}
}
