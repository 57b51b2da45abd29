package privacy

import "context"

// PIIKind identifies the category of a detected sensitive span
type PIIKind string

const (
	KindPhone       PIIKind = "phone"
	KindEmail       PIIKind = "email"
	KindNationalID  PIIKind = "national_id" // Aadhaar
	KindPaymentCard PIIKind = "payment_card"
	KindTaxID       PIIKind = "tax_id" // PAN
	KindPersonName  PIIKind = "person_name"
	KindOrgName     PIIKind = "org_name"
)

// Label returns the uppercase token label used in masking placeholders,
// e.g. [PHONE_MASKED_0].
func (k PIIKind) Label() string {
	switch k {
	case KindPhone:
		return "PHONE"
	case KindEmail:
		return "EMAIL"
	case KindNationalID:
		return "AADHAAR"
	case KindPaymentCard:
		return "CARD"
	case KindTaxID:
		return "PAN"
	case KindPersonName:
		return "PERSON"
	case KindOrgName:
		return "ORG"
	default:
		return "PII"
	}
}

// DetectionMethod identifies how a finding was produced
type DetectionMethod string

const (
	MethodRegex   DetectionMethod = "regex"
	MethodLexicon DetectionMethod = "lexicon"
	MethodNER     DetectionMethod = "ner"
)

// weight orders methods for overlap tie-breaks. Structured regex matches are
// higher-confidence than statistical or lexicon hits.
func (m DetectionMethod) weight() int {
	switch m {
	case MethodRegex:
		return 3
	case MethodNER:
		return 2
	case MethodLexicon:
		return 1
	default:
		return 0
	}
}

// Finding represents a single detected PII span. Spans are half-open
// [Start, End) byte offsets into the source text.
type Finding struct {
	Kind       PIIKind         `json:"kind"`
	Start      int             `json:"start"`
	End        int             `json:"end"`
	Method     DetectionMethod `json:"method"`
	Confidence float64         `json:"confidence,omitempty"`
	value      string          // raw matched text, never serialized
}

// Value returns the raw matched text. Callers must not log or persist it
// outside the vault.
func (f Finding) Value() string { return f.value }

// Detector produces findings from free text. Implementations must be safe
// for concurrent use and must not mutate the input.
type Detector interface {
	Name() string
	Method() DetectionMethod
	Detect(ctx context.Context, text string) ([]Finding, error)
}

// MaskedResult contains the outcome of processing text through the engine
type MaskedResult struct {
	Original     string    `json:"-"` // never serialize original text
	MaskedText   string    `json:"maskedText"`
	SessionID    string    `json:"sessionId"`
	Findings     []Finding `json:"findings"`
	FindingCount int       `json:"findingCount"`

	// VaultErr is set when token mappings could not be written. The masked
	// text is still valid, but this session cannot be unmasked later. It is
	// distinct from a token that never existed.
	VaultErr error `json:"-"`
}

// Reversible reports whether the session's token mappings were stored
func (r *MaskedResult) Reversible() bool {
	return r.VaultErr == nil
}
