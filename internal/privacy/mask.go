package privacy

import (
	"fmt"
	"regexp"
	"strings"
)

// maskedTokenPattern matches vault placeholder tokens of the form
// [KIND_MASKED_n]. Placeholders are not themselves valid PII patterns, so
// re-masking already-masked text produces no new findings.
var maskedTokenPattern = regexp.MustCompile(`\[[A-Z]+_MASKED_\d+\]`)

// redact builds the replacement text for a kept finding. Structured kinds
// keep a short recognizable prefix/suffix; names and organizations are
// replaced by the placeholder token outright.
func redact(kind PIIKind, value, token string) string {
	switch kind {
	case KindPhone:
		return maskPhone(value)
	case KindEmail:
		return maskEmail(value)
	case KindPaymentCard:
		return maskCard(value)
	case KindNationalID:
		return maskAadhaar(value)
	case KindTaxID:
		return maskPAN(value)
	default:
		return token
	}
}

// maskPhone keeps the last 4 digits
func maskPhone(phone string) string {
	digits := digitsOf(phone)
	if len(digits) < 10 {
		return "****-****-****"
	}
	if strings.HasPrefix(phone, "+91") {
		return fmt.Sprintf("+91-****-****-%s", digits[len(digits)-4:])
	}
	return fmt.Sprintf("****-****-%s", digits[len(digits)-4:])
}

// maskEmail keeps the first letter and the domain
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "****@****"
	}
	username, domain := email[:at], email[at+1:]
	if len(username) > 1 {
		return fmt.Sprintf("%c****@%s", username[0], domain)
	}
	return fmt.Sprintf("****@%s", domain)
}

// maskCard keeps the last 4 digits
func maskCard(card string) string {
	digits := digitsOf(card)
	if len(digits) < 4 {
		return "****-****-****-****"
	}
	return fmt.Sprintf("****-****-****-%s", digits[len(digits)-4:])
}

// maskAadhaar keeps the last 4 digits
func maskAadhaar(id string) string {
	digits := digitsOf(id)
	if len(digits) < 4 {
		return "****-****-****"
	}
	return fmt.Sprintf("****-****-%s", digits[len(digits)-4:])
}

// maskPAN keeps the trailing check letter
func maskPAN(pan string) string {
	if len(pan) < 1 {
		return "*********"
	}
	return strings.Repeat("*", len(pan)-1) + pan[len(pan)-1:]
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
