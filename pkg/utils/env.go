package utils

import (
	"os"
	"strings"
)

func ParseWithFallback(envName string, fallback string) string {
	result := os.Getenv(envName)
	if result == "" {
		result = fallback
	}

	return result
}

// MaskSecret keeps the first and last three characters of long values so
// startup logs can show which credential is loaded without leaking it.
func MaskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 6 {
		return strings.Repeat("*", len(value))
	}

	return value[:3] + "***" + value[len(value)-3:]
}
