package privacy

import (
	"context"
	"errors"
)

// ErrDetectionUnavailable marks a detector whose backend is absent or down.
// The engine treats it as a graceful-degradation signal, not a failure.
var ErrDetectionUnavailable = errors.New("privacy: detection backend unavailable")

// Recognizer is the pluggable backend for statistical person/organization
// recognition. Implementations may use ONNX Runtime or any other engine;
// the default build ships none.
type Recognizer interface {
	// Recognize returns person/org findings with spans in source-text
	// coordinates.
	Recognize(ctx context.Context, text string) ([]Finding, error)
	// IsReady returns whether the backend is initialized and ready.
	IsReady() bool
	// Close releases any native resources.
	Close() error
}

// nerDetector adapts a Recognizer to the Detector interface. A nil or
// not-ready recognizer reports ErrDetectionUnavailable so the engine can
// skip it and proceed with the remaining detectors.
type nerDetector struct {
	recognizer Recognizer
}

func newNERDetector(recognizer Recognizer) *nerDetector {
	return &nerDetector{recognizer: recognizer}
}

func (d *nerDetector) Name() string            { return "statistical_ner" }
func (d *nerDetector) Method() DetectionMethod { return MethodNER }

func (d *nerDetector) Detect(ctx context.Context, text string) ([]Finding, error) {
	if d.recognizer == nil || !d.recognizer.IsReady() {
		return nil, ErrDetectionUnavailable
	}
	return d.recognizer.Recognize(ctx, text)
}

func (d *nerDetector) close() {
	if d.recognizer != nil {
		_ = d.recognizer.Close()
	}
}
