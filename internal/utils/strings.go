// Package utils holds small shared helpers.
package utils

// MaskKey masks an API key for safe logging, showing the first 8 and
// last 4 characters. Short keys are fully masked.
func MaskKey(key string) string {
	if key == "" {
		return "(empty)"
	}
	if len(key) < 16 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
