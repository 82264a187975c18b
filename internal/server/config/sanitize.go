package config

import "strings"

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Server.HTTP.AdminToken != "" {
		sanitized.Server.HTTP.AdminToken = maskSecret(sanitized.Server.HTTP.AdminToken)
	}

	return &sanitized
}

// maskSecret keeps the first and last two characters of longer secrets.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
