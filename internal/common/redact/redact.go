// Package redact masks personally identifiable information before payloads
// reach logs, events, or alert channels.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Pattern-based masking. Each pattern is replaced with its bracketed label
// so leaked values are still visible as redaction sites in transcripts.
var piiPatterns = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{"REDACTED_SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"REDACTED_CREDIT_CARD", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)},
	{"REDACTED_EMAIL", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"REDACTED_PHONE", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
}

// sensitiveFields are masked wherever they appear as keys in structured
// payloads, regardless of value shape.
var sensitiveFields = map[string]bool{
	"ssn":           true,
	"date_of_birth": true,
	"email":         true,
	"phone":         true,
	"address":       true,
	"first_name":    true,
	"last_name":     true,
}

// MaskText replaces every PII pattern occurrence in text with its label.
func MaskText(text string) string {
	masked := text
	for _, p := range piiPatterns {
		masked = p.pattern.ReplaceAllString(masked, "["+p.label+"]")
	}
	return masked
}

// SanitizeFields returns a deep copy of fields with sensitive keys replaced
// by "[REDACTED]" and PII patterns masked inside remaining string values.
// The input map is never mutated.
func SanitizeFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	sanitized := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		if sensitiveFields[key] {
			sanitized[key] = "[REDACTED]"
			continue
		}

		switch v := value.(type) {
		case string:
			sanitized[key] = MaskText(v)
		case map[string]interface{}:
			sanitized[key] = SanitizeFields(v)
		case []interface{}:
			items := make([]interface{}, len(v))
			for i, item := range v {
				if s, ok := item.(string); ok {
					items[i] = MaskText(s)
				} else if m, ok := item.(map[string]interface{}); ok {
					items[i] = SanitizeFields(m)
				} else {
					items[i] = item
				}
			}
			sanitized[key] = items
		default:
			sanitized[key] = value
		}
	}

	return sanitized
}

// HashField returns a short stable digest of a sensitive value so that logs
// and metrics can correlate on it without exposing the value itself.
func HashField(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}

// ContainsLeaks reports which of the given sensitive values appear verbatim
// in text. Used to post-check oracle responses before they are persisted.
func ContainsLeaks(text string, values []string) []string {
	var leaks []string
	for _, val := range values {
		if val == "" {
			continue
		}
		if strings.Contains(text, val) {
			leaks = append(leaks, val)
		}
	}
	return leaks
}
