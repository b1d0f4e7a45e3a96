package classify

import (
	"context"
	"image"
)

// TopK is how many ranked predictions a classifier returns.
const TopK = 5

// Prediction pairs a model label with its softmax confidence.
type Prediction struct {
	Label      string
	Confidence float64
}

// Result carries both views of one inference: the ranked head and the full
// probability vector in class-index order. Consumers that miss in the ranked
// head can fall back to scanning All.
type Result struct {
	Top []Prediction
	All []Prediction
}

// Classifier produces ranked label predictions for an image. Implementations
// must be safe for concurrent use; the whole process shares one instance.
type Classifier interface {
	Classify(ctx context.Context, img image.Image) (Result, error)
	Close() error
}
