//go:build onnx
// +build onnx

package privacy

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// BIO label scheme emitted by the token-classification model
const (
	labelOutside     = 0
	labelBeginPerson = 1
	labelInsidePer   = 2
	labelBeginOrg    = 3
	labelInsideOrg   = 4
	numLabels        = 5
)

const nerVocabSize = 30522

var nerTokenPattern = regexp.MustCompile(`\S+`)

// OnnxRecognizer implements Recognizer using an ONNX Runtime
// token-classification session (via yalue/onnxruntime_go).
type OnnxRecognizer struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	maxLength  int
	logger     *zap.Logger
	ready      bool
	mu         sync.RWMutex
}

// NewRecognizer initializes the ONNX Runtime recognizer. Requires build tag
// 'onnx'. Returns nil on any initialization failure so the engine degrades
// to regex/lexicon detection.
func NewRecognizer(logger *zap.Logger, modelPath string, maxLength int) Recognizer {
	// Allow user to provide shared library path via environment variable.
	if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	} else if shlib := os.Getenv("ORT_SHLIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		logger.Error("ONNX Runtime environment init failed", zap.Error(err))
		return nil
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		logger.Error("Failed to inspect ONNX model IO", zap.Error(err), zap.String("model", modelPath))
		return nil
	}

	// Prefer common transformer inputs order
	preferredInputs := []string{"input_ids", "attention_mask"}
	available := map[string]bool{}
	for _, ii := range inputsInfo {
		available[strings.ToLower(ii.Name)] = true
	}
	var inputNames []string
	for _, name := range preferredInputs {
		if available[name] {
			inputNames = append(inputNames, name)
		}
	}
	// If no preferred names matched, fall back to model-declared order
	if len(inputNames) == 0 && len(inputsInfo) > 0 {
		sorted := make([]string, 0, len(inputsInfo))
		for _, ii := range inputsInfo {
			sorted = append(sorted, ii.Name)
		}
		sort.Strings(sorted)
		inputNames = sorted
	}

	if len(outputsInfo) == 0 {
		logger.Error("ONNX model reports no outputs", zap.String("model", modelPath))
		return nil
	}
	outputName := outputsInfo[0].Name

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputName}, nil)
	if err != nil {
		logger.Error("ONNX Runtime session creation failed", zap.Error(err), zap.String("model", modelPath))
		return nil
	}

	if maxLength <= 0 {
		maxLength = 256
	}

	logger.Info("ONNX NER recognizer ready",
		zap.String("model", modelPath),
		zap.Strings("inputs", inputNames),
		zap.String("output", outputName))

	return &OnnxRecognizer{
		session:    sess,
		inputNames: inputNames,
		outputName: outputName,
		maxLength:  maxLength,
		logger:     logger,
		ready:      true,
	}
}

// IsReady reports whether the recognizer is initialized.
func (r *OnnxRecognizer) IsReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready && r.session != nil
}

// Close releases session and environment resources.
func (r *OnnxRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		r.session.Destroy()
		r.session = nil
	}
	ort.DestroyEnvironment()
	r.ready = false
	return nil
}

// Recognize runs token classification over the text and maps BIO label runs
// back to source spans.
func (r *OnnxRecognizer) Recognize(ctx context.Context, text string) ([]Finding, error) {
	if !r.IsReady() {
		return nil, ErrDetectionUnavailable
	}
	if text == "" {
		return nil, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	offsets := nerTokenPattern.FindAllStringIndex(text, -1)
	if len(offsets) == 0 {
		return nil, nil
	}
	if len(offsets) > r.maxLength {
		offsets = offsets[:r.maxLength]
	}

	seqLen := r.maxLength
	inputIDs := make([]int64, seqLen)
	attention := make([]int64, seqLen)
	for i, loc := range offsets {
		inputIDs[i] = hashTokenID(strings.ToLower(text[loc[0]:loc[1]]))
		attention[i] = 1
	}

	shape := ort.NewShape(1, int64(seqLen))
	idsTensor, err := ort.NewTensor[int64](shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor[int64](shape, attention)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := make([]ort.Value, 0, len(r.inputNames))
	for _, rawName := range r.inputNames {
		name := strings.ToLower(rawName)
		if strings.Contains(name, "mask") || strings.Contains(name, "attention") {
			inputs = append(inputs, maskTensor)
		} else {
			inputs = append(inputs, idsTensor)
		}
	}

	outputs := make([]ort.Value, 1)
	if err := r.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx run failed: %w", err)
	}
	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("onnx returned no outputs")
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type (want float32 tensor)")
	}
	data := outTensor.GetData()
	outShape := outTensor.GetShape()
	if len(outShape) != 3 || int(outShape[2]) != numLabels {
		return nil, fmt.Errorf("unsupported output shape %v (want [1, seq, %d])", outShape, numLabels)
	}

	seq := int(outShape[1])
	labels := make([]int, len(offsets))
	probs := make([]float64, len(offsets))
	for i := range offsets {
		if i >= seq {
			break
		}
		logits := data[i*numLabels : (i+1)*numLabels]
		label, prob := argmaxSoftmax(logits)
		labels[i] = label
		probs[i] = prob
	}

	return r.spansFromLabels(text, offsets, labels, probs), nil
}

// spansFromLabels merges contiguous BIO runs into person/org findings.
func (r *OnnxRecognizer) spansFromLabels(text string, offsets [][]int, labels []int, probs []float64) []Finding {
	var findings []Finding

	flush := func(kind PIIKind, first, last int, confidence float64, count int) {
		if count == 0 {
			return
		}
		start, end := offsets[first][0], offsets[last][1]
		findings = append(findings, Finding{
			Kind:       kind,
			Start:      start,
			End:        end,
			Method:     MethodNER,
			Confidence: confidence / float64(count),
			value:      text[start:end],
		})
	}

	var kind PIIKind
	first, conf, count := -1, 0.0, 0
	for i, label := range labels {
		begin, inside := labelKind(label)
		switch {
		case begin != "":
			flush(kind, first, i-1, conf, count)
			kind, first, conf, count = begin, i, probs[i], 1
		case inside != "" && count > 0 && inside == kind:
			conf += probs[i]
			count++
		default:
			flush(kind, first, i-1, conf, count)
			count = 0
		}
	}
	flush(kind, first, len(labels)-1, conf, count)

	return findings
}

func labelKind(label int) (begin, inside PIIKind) {
	switch label {
	case labelBeginPerson:
		return KindPersonName, ""
	case labelInsidePer:
		return "", KindPersonName
	case labelBeginOrg:
		return KindOrgName, ""
	case labelInsideOrg:
		return "", KindOrgName
	default:
		return "", ""
	}
}

// hashTokenID maps a token to a stable vocabulary ID
func hashTokenID(token string) int64 {
	h := fnv.New32a()
	h.Write([]byte(token))
	return int64(h.Sum32() % nerVocabSize)
}

// argmaxSoftmax returns the winning label and its softmax probability
func argmaxSoftmax(logits []float32) (int, float64) {
	best, bestVal := 0, float64(logits[0])
	for i, v := range logits {
		if float64(v) > bestVal {
			best, bestVal = i, float64(v)
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v) - bestVal)
	}
	return best, 1.0 / sum
}
