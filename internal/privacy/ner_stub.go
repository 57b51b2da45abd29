//go:build !onnx
// +build !onnx

package privacy

import (
	"go.uber.org/zap"
)

// Stub implementation used when the 'onnx' build tag is not set. The NER
// detector then reports unavailable and the engine runs regex/lexicon only.
func NewRecognizer(logger *zap.Logger, modelPath string, maxLength int) Recognizer {
	return nil
}
