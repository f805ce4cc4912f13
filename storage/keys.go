package storage

import "strings"

const maxObjectNameLength = 50

// SanitizeObjectName derives a storage-safe object key from arbitrary prompt
// text. Runs of characters outside [A-Za-z0-9] collapse into a single
// underscore, the result is lowercased, stripped of leading and trailing
// underscores and truncated to 50 characters. A trailing underscore exposed
// by truncation is stripped again, so the result always matches
// ^[a-z0-9]+(_[a-z0-9]+)*$ or is empty. Input with no alphanumeric
// characters sanitizes to the empty string.
func SanitizeObjectName(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isKeyRune(r)
	})
	key := strings.Join(fields, "_")
	if len(key) > maxObjectNameLength {
		key = strings.TrimRight(key[:maxObjectNameLength], "_")
	}
	return key
}

func isKeyRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
