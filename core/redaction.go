package core

import (
	"regexp"
	"strings"
)

const RedactedValue = "[REDACTED]"

var sensitiveKeyFragments = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"access_key",
	"refresh",
	"credential",
	"signature",
	"code_verifier",
}

// traceabilityKeys match a sensitive fragment but carry no secret.
var traceabilityKeys = map[string]struct{}{
	"refresh_reason":  {},
	"store_key":       {},
	"delivery_id":     {},
	"callback_type":   {},
	"request_id":      {},
	"idempotency_key": {},
	"trace_id":        {},
	"error_text_code": {},
}

var bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`)

// RedactSensitiveMap copies metadata with every credential-like value,
// nested ones and header maps included, replaced by RedactedValue. Bearer
// tokens embedded in plain strings, such as error messages, are masked too.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if IsSensitiveKey(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

// RedactString masks bearer tokens inside value.
func RedactString(value string) string {
	return bearerPattern.ReplaceAllString(value, "${1}"+RedactedValue)
}

// IsSensitiveKey reports whether a field named key is redacted in logs.
func IsSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, ok := traceabilityKeys[key]; ok {
		return false
	}
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case map[string]string:
		out := make(map[string]string, len(typed))
		for key, item := range typed {
			if IsSensitiveKey(key) {
				out[key] = RedactedValue
				continue
			}
			out[key] = RedactString(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	case string:
		return RedactString(typed)
	default:
		return value
	}
}
