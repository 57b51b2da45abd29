package privacy

import (
	"context"
	"regexp"
	"strings"
)

// regexDetector matches a single structured PII kind with an RE2 pattern.
// RE2 guarantees linear-time matching, so pathological input cannot cause
// unbounded backtracking.
type regexDetector struct {
	name       string
	kind       PIIKind
	pattern    *regexp.Regexp
	confidence float64
}

func (d *regexDetector) Name() string            { return d.name }
func (d *regexDetector) Method() DetectionMethod { return MethodRegex }

func (d *regexDetector) Detect(_ context.Context, text string) ([]Finding, error) {
	locs := d.pattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil, nil
	}

	findings := make([]Finding, 0, len(locs))
	for _, loc := range locs {
		findings = append(findings, Finding{
			Kind:       d.kind,
			Start:      loc[0],
			End:        loc[1],
			Method:     MethodRegex,
			Confidence: d.confidence,
			value:      text[loc[0]:loc[1]],
		})
	}
	return findings, nil
}

// defaultRegexDetectors returns the fixed library of structured PII
// detectors. Patterns target Indian formats: +91 mobile numbers, Aadhaar
// (12 digits in 4-4-4 groups), PAN (AAAAA9999A) and 16-digit payment cards.
func defaultRegexDetectors() []Detector {
	return []Detector{
		&regexDetector{
			name:       "phone",
			kind:       KindPhone,
			pattern:    regexp.MustCompile(`(?:\+91[-\s]?)?\b[6-9]\d{9}\b`),
			confidence: 0.95,
		},
		&regexDetector{
			name:       "email",
			kind:       KindEmail,
			pattern:    regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
			confidence: 0.98,
		},
		&regexDetector{
			name:       "aadhaar",
			kind:       KindNationalID,
			pattern:    regexp.MustCompile(`\b\d{4}[-\s]\d{4}[-\s]\d{4}\b`),
			confidence: 0.9,
		},
		&regexDetector{
			name:       "credit_card",
			kind:       KindPaymentCard,
			pattern:    regexp.MustCompile(`\b(?:\d{4}[-\s]){3}\d{4}\b|\b\d{16}\b`),
			confidence: 0.9,
		},
		&regexDetector{
			name:       "pan",
			kind:       KindTaxID,
			pattern:    regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`),
			confidence: 0.95,
		},
	}
}

// wordPattern tokenizes text for lexicon lookups while preserving offsets
var wordPattern = regexp.MustCompile(`[A-Za-z]+`)

// lexiconDetector flags words found in a fixed name lexicon. It is a known
// precision/recall trade-off: common words colliding with the lexicon are
// accepted, and the engine gives lexicon findings the lowest precedence at
// overlap ties.
type lexiconDetector struct {
	name  string
	kind  PIIKind
	words map[string]struct{}
}

func newNameLexiconDetector() *lexiconDetector {
	words := make(map[string]struct{}, len(indianGivenNames))
	for _, w := range indianGivenNames {
		words[w] = struct{}{}
	}
	return &lexiconDetector{
		name:  "indian_names",
		kind:  KindPersonName,
		words: words,
	}
}

func (d *lexiconDetector) Name() string            { return d.name }
func (d *lexiconDetector) Method() DetectionMethod { return MethodLexicon }

func (d *lexiconDetector) Detect(_ context.Context, text string) ([]Finding, error) {
	var findings []Finding
	for _, loc := range wordPattern.FindAllStringIndex(text, -1) {
		word := strings.ToLower(text[loc[0]:loc[1]])
		if _, ok := d.words[word]; !ok {
			continue
		}
		findings = append(findings, Finding{
			Kind:       d.kind,
			Start:      loc[0],
			End:        loc[1],
			Method:     MethodLexicon,
			Confidence: 0.6,
			value:      text[loc[0]:loc[1]],
		})
	}
	return findings, nil
}

// indianGivenNames is the built-in lexicon of common Indian first names
var indianGivenNames = []string{
	// male
	"rajesh", "amit", "rohit", "vikram", "suresh", "deepak", "anil", "manoj",
	"prakash", "vinod", "ashok", "ravi", "mohan", "krishna", "ganesh", "shiva",
	"arjun", "kiran", "ajay", "rahul", "ankit", "nitin", "sachin", "vishal",
	"pradeep", "mahesh", "santosh", "dinesh", "ramesh", "mukesh", "yogesh",
	// female
	"priya", "sneha", "pooja", "kavya", "anita", "meera", "divya", "riya",
	"sita", "nisha", "lakshmi", "radha", "geeta", "shanti", "indira", "parvati",
	"saraswati", "durga", "kali", "sunita", "rekha", "sonia", "neha", "asha",
	"usha", "rita", "lata", "maya", "jyoti", "sapna",
}
