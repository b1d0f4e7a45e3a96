package classify

import (
	"context"
	"image"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gonum.org/v1/gonum/floats"

	apperrors "snapsort/internal/errors"
	"snapsort/internal/logger"
)

// ONNXConfig locates the model and its label vocabulary. SharedLibraryPath
// may be empty when the onnxruntime shared library is on the default search
// path.
type ONNXConfig struct {
	ModelPath         string
	LabelsPath        string
	SharedLibraryPath string
}

// ONNXClassifier runs an image classification model through onnxruntime.
// The session owns fixed input and output tensors, so inference is
// serialized with a mutex; preprocessing happens outside the lock.
//
// The model is expected to take a 1x3x224x224 float32 tensor named "input"
// and produce one logit per label under the name "output". The output width
// is derived from the labels file, one label per line in class-index order.
type ONNXClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	labels       []string
}

// NewONNXClassifier loads the labels, initializes the onnxruntime
// environment and builds the session. The caller owns the returned
// classifier and must Close it.
func NewONNXClassifier(cfg ONNXConfig) (*ONNXClassifier, error) {
	labels, err := loadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, apperrors.NewClassificationError("failed to initialize onnxruntime", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, inputSize, inputSize))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, apperrors.NewClassificationError("failed to create input tensor", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(labels))))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, apperrors.NewClassificationError("failed to create output tensor", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, apperrors.NewClassificationError("failed to create onnx session", err)
	}

	logger.WithField("model", cfg.ModelPath).
		WithField("classes", len(labels)).
		Info("Classifier ready")

	return &ONNXClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		labels:       labels,
	}, nil
}

// Classify runs one inference and returns the ranked head plus the full
// softmax vector in class-index order.
func (c *ONNXClassifier) Classify(ctx context.Context, img image.Image) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	input := preprocess(img)

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return Result{}, apperrors.NewClassificationError("classifier is closed", nil)
	}
	copy(c.inputTensor.GetData(), input)
	err := c.session.Run()
	var logits []float32
	if err == nil {
		logits = append([]float32(nil), c.outputTensor.GetData()...)
	}
	c.mu.Unlock()

	if err != nil {
		return Result{}, apperrors.NewClassificationError("inference failed", err)
	}

	probs := softmax(logits)
	all := make([]Prediction, len(probs))
	for i, p := range probs {
		all[i] = Prediction{Label: c.labels[i], Confidence: p}
	}
	return Result{Top: topK(all, TopK), All: all}, nil
}

// Close destroys the session, its tensors and the onnxruntime environment.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	return ort.DestroyEnvironment()
}

// loadLabels reads one label per line, in class-index order.
func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewValidationError("failed to read labels file", err)
	}
	var labels []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			labels = append(labels, line)
		}
	}
	if len(labels) == 0 {
		return nil, apperrors.NewValidationError("labels file is empty", nil)
	}
	return labels, nil
}

// softmax turns raw logits into probabilities, shifted by the maximum for
// numerical stability.
func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	xs := make([]float64, len(logits))
	for i, v := range logits {
		xs[i] = float64(v)
	}
	shift := floats.Max(xs)
	sum := 0.0
	for i, v := range xs {
		xs[i] = math.Exp(v - shift)
		sum += xs[i]
	}
	floats.Scale(1/sum, xs)
	return xs
}

// topK returns the k highest-confidence predictions, best first. Ties keep
// class-index order.
func topK(all []Prediction, k int) []Prediction {
	ranked := append([]Prediction(nil), all...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k]
}
