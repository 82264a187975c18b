package logger

import (
	"log/slog"
	"strings"
)

// Value prefixes that identify bearer tokens.
// "eyJ" is the base64url encoding of `{"`, the start of every JWT header.
var sensitiveValuePrefixes = []string{
	"eyJ",
}

// Key patterns whose string values are always redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"jwt",
	"key",
	"credential",
	"auth",
	"bearer",
}

const redactedValue = "***REDACTED***"

// maskMarker separates the visible head and tail of a masked value.
const maskMarker = "..."

func redactSensitive(a slog.Attr) slog.Attr {
	// Prefix detection keeps a hint of the value and takes priority over key matching.
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if isMasked(strVal) {
			return a
		}
		for _, prefix := range sensitiveValuePrefixes {
			if strings.HasPrefix(strVal, prefix) {
				return slog.String(a.Key, maskValue(strVal))
			}
		}

		if strVal != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// maskValue keeps the first and last 6 characters.
func maskValue(value string) string {
	if len(value) <= 16 {
		return "***"
	}
	return value[:6] + maskMarker + value[len(value)-6:]
}

// isMasked reports whether value already has the maskValue shape.
func isMasked(value string) bool {
	if value == redactedValue || value == "***" {
		return true
	}
	return len(value) == 15 && value[6:9] == maskMarker
}

// RedactString manually redacts a string value.
func RedactString(value string) string {
	if IsSensitiveValue(value) {
		return maskValue(value)
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value appears to be a bearer token.
func IsSensitiveValue(value string) bool {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
