package privacy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sunnyshin8/chatguard/internal/audit"
	"github.com/sunnyshin8/chatguard/internal/config"
	"github.com/sunnyshin8/chatguard/internal/logger"
	"github.com/sunnyshin8/chatguard/internal/vault"
)

// Engine orchestrates PII detection and masking over free text
type Engine struct {
	detectors []Detector
	enabled   map[string]bool
	vault     *vault.Vault
	audit     audit.Sink
	logger    *logger.Logger
	config    config.PrivacyConfig
}

// New creates a new masking engine. The vault and audit sink may be nil;
// masking then still works but sessions are not reversible and no audit
// records are emitted.
func New(cfg config.PrivacyConfig, vlt *vault.Vault, sink audit.Sink, log *logger.Logger) (*Engine, error) {
	detectors := defaultRegexDetectors()
	detectors = append(detectors, newNameLexiconDetector())

	if cfg.NER.Enabled {
		recognizer := NewRecognizer(log.Logger, cfg.NER.ModelPath, cfg.NER.MaxLength)
		detectors = append(detectors, newNERDetector(recognizer))
		if recognizer == nil {
			log.Warn("NER backend unavailable, falling back to regex/lexicon detection")
		}
	}

	engine := &Engine{
		detectors: detectors,
		enabled:   make(map[string]bool),
		vault:     vlt,
		audit:     sink,
		logger:    log,
		config:    cfg,
	}

	if err := engine.configureDetectors(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("Masking engine initialized",
		zap.Int("total_detectors", len(engine.detectors)),
		zap.Int("enabled_detectors", engine.countEnabled()),
		zap.Bool("ner_enabled", cfg.NER.Enabled),
	)

	return engine, nil
}

// configureDetectors enables/disables detectors based on configuration
func (e *Engine) configureDetectors(names []string) error {
	for _, d := range e.detectors {
		e.enabled[d.Name()] = false
	}

	for _, name := range names {
		if name == "all" {
			for _, d := range e.detectors {
				e.enabled[d.Name()] = true
			}
			continue
		}

		found := false
		for _, d := range e.detectors {
			if d.Name() == name {
				e.enabled[d.Name()] = true
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown detector: %s", name)
		}
	}

	return nil
}

// Mask processes text through all enabled detectors and returns the masked
// text plus findings. When sessionID is empty a fresh session is generated;
// callers reuse a session across turns of one conversation. A failing
// detector is skipped, never fatal. A vault write failure is reported via
// MaskedResult.VaultErr while masking still succeeds.
func (e *Engine) Mask(ctx context.Context, text, sessionID string) (*MaskedResult, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result := &MaskedResult{
		Original:   text,
		MaskedText: text,
		SessionID:  sessionID,
		Findings:   []Finding{},
	}

	if !e.config.Enabled || text == "" {
		return result, nil
	}

	raw := e.collect(ctx, text)
	kept := resolveOverlaps(raw)
	if len(kept) == 0 {
		return result, nil
	}

	result.Findings = kept
	result.FindingCount = len(kept)
	result.MaskedText = e.applyMasks(ctx, text, sessionID, kept, result)

	e.writeAudit(ctx, sessionID, kept)

	e.logger.Info("PII detected and masked",
		zap.String("session_hash", logger.HashSession(sessionID)),
		zap.Int("finding_count", len(kept)),
		zap.Bool("reversible", result.Reversible()),
	)

	return result, nil
}

// collect runs every enabled detector and gathers raw findings. Detector
// failures degrade gracefully: unavailable backends are logged at debug,
// real errors at warn, and the rest of the detectors proceed.
func (e *Engine) collect(ctx context.Context, text string) []Finding {
	var raw []Finding
	for _, d := range e.detectors {
		if !e.enabled[d.Name()] {
			continue
		}

		findings, err := d.Detect(ctx, text)
		if err != nil {
			if errors.Is(err, ErrDetectionUnavailable) {
				e.logger.Debug("Detector unavailable, skipping", zap.String("detector", d.Name()))
			} else {
				e.logger.Warn("Detector failed, skipping",
					zap.String("detector", d.Name()),
					zap.Error(err))
			}
			continue
		}
		raw = append(raw, findings...)
	}
	return raw
}

// resolveOverlaps produces a deterministic, pairwise non-overlapping finding
// set regardless of detector registration order: sort by (start, -length),
// sweep left to right keeping a finding only if it does not intersect an
// already-kept span. Exact ties are broken by method precedence, regex over
// NER over lexicon.
func resolveOverlaps(raw []Finding) []Finding {
	if len(raw) == 0 {
		return nil
	}

	sorted := make([]Finding, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		li, lj := sorted[i].End-sorted[i].Start, sorted[j].End-sorted[j].Start
		if li != lj {
			return li > lj
		}
		return sorted[i].Method.weight() > sorted[j].Method.weight()
	})

	kept := make([]Finding, 0, len(sorted))
	maxEnd := 0
	for _, f := range sorted {
		if f.Start < f.End && f.Start >= maxEnd {
			kept = append(kept, f)
			maxEnd = f.End
		}
	}
	return kept
}

// applyMasks builds the masked string, assigns per-kind per-call ordinals
// and stores one vault mapping per finding.
func (e *Engine) applyMasks(ctx context.Context, text, sessionID string, kept []Finding, result *MaskedResult) string {
	var b strings.Builder
	ordinals := make(map[PIIKind]int)
	cursor := 0

	for _, f := range kept {
		ordinal := ordinals[f.Kind]
		ordinals[f.Kind] = ordinal + 1

		token := fmt.Sprintf("[%s_MASKED_%d]", f.Kind.Label(), ordinal)
		replacement := redact(f.Kind, f.value, token)

		b.WriteString(text[cursor:f.Start])
		b.WriteString(replacement)
		cursor = f.End

		if e.vault != nil {
			if err := e.vault.Put(ctx, sessionID, token, f.value, string(f.Kind)); err != nil {
				if result.VaultErr == nil {
					result.VaultErr = err
				}
				e.logger.Warn("Vault write failed, session not reversible",
					zap.String("session_hash", logger.HashSession(sessionID)),
					zap.Error(err))
			}
		}
	}
	b.WriteString(text[cursor:])

	return b.String()
}

// writeAudit emits a hash-only audit record; failures are logged, never fatal
func (e *Engine) writeAudit(ctx context.Context, sessionID string, kept []Finding) {
	if e.audit == nil {
		return
	}

	kindCounts := make(map[string]int)
	methodSet := make(map[string]struct{})
	for _, f := range kept {
		kindCounts[string(f.Kind)]++
		methodSet[string(f.Method)] = struct{}{}
	}
	methods := make([]string, 0, len(methodSet))
	for m := range methodSet {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	rec := audit.NewRecord(logger.HashSession(sessionID), kindCounts, methods)
	if err := e.audit.Write(ctx, rec); err != nil {
		e.logger.Warn("Audit write failed", zap.Error(err))
	}
}

// Unmask replaces vault placeholder tokens in text with their original
// values for the given session. This is the privileged reversal path.
// Unknown or expired tokens are left in place and returned in missing;
// backend failures other than a miss are returned as err alongside the
// partially unmasked text.
func (e *Engine) Unmask(ctx context.Context, text, sessionID string) (unmasked string, missing []string, err error) {
	if e.vault == nil {
		return text, nil, fmt.Errorf("no vault configured")
	}

	unmasked = maskedTokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		value, getErr := e.vault.Get(ctx, sessionID, token)
		if getErr != nil {
			if errors.Is(getErr, vault.ErrNotFound) {
				missing = append(missing, token)
			} else if err == nil {
				err = getErr
			}
			return token
		}
		return value
	})

	if len(missing) > 0 {
		e.logger.WithSession(sessionID).Debug("Tokens could not be unmasked",
			zap.Int("missing", len(missing)))
	}

	return unmasked, missing, err
}

// EnabledDetectors returns the names of enabled detectors
func (e *Engine) EnabledDetectors() []string {
	var names []string
	for _, d := range e.detectors {
		if e.enabled[d.Name()] {
			names = append(names, d.Name())
		}
	}
	return names
}

// countEnabled returns the number of enabled detectors
func (e *Engine) countEnabled() int {
	count := 0
	for _, on := range e.enabled {
		if on {
			count++
		}
	}
	return count
}

// Close releases detector backends
func (e *Engine) Close() {
	for _, d := range e.detectors {
		if nd, ok := d.(*nerDetector); ok {
			nd.close()
		}
	}
}
