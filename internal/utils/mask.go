package utils

import "strings"

// MaskSecret keeps a short prefix of a secret for log correlation. Bearer prefixes are kept as is.
func MaskSecret(s string) string {
	s = strings.TrimSpace(s)
	prefix := ""
	if rest, ok := strings.CutPrefix(s, "Bearer "); ok {
		prefix, s = "Bearer ", rest
	}

	if len(s) <= 8 {
		return prefix + "*****"
	}
	return prefix + s[:4] + "*****"
}
