package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Server.HTTP.AllowedOrigins = append([]string(nil), cfg.Server.HTTP.AllowedOrigins...)

	if sanitized.Security.BootstrapPassword != "" {
		sanitized.Security.BootstrapPassword = maskSecret(sanitized.Security.BootstrapPassword)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
