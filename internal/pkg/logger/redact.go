package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactID truncates an opaque identifier to an 8-char prefix.
// "9f86d081-8842-4f6e-a3d2-1c2f4a5b6c7d" → "9f86d081***"
// Short identifiers (≤8 chars) are fully masked.
func RedactID(id string) string {
	if len(id) <= 8 {
		return "***"
	}
	return id[:8] + "***"
}
