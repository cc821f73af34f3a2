package logging

import (
	"regexp"
)

// sensitiveKeyRe matches log field names that must never appear in plain
// text: credentials and signing material, regardless of which endpoint or
// job produced them (spec.md §6 "audit/slow-query logging must mask...").
var sensitiveKeyRe = regexp.MustCompile(`(?i)(password|token|secret|signature)`)

var (
	emailRe = regexp.MustCompile(`^([^@]{1,2})[^@]*(@.+)$`)
	phoneRe = regexp.MustCompile(`^(\d{3})\d{4}(\d{2,4})$`)
)

// Mask redacts value when key names a sensitive field, and partially masks
// recognizably email- or phone-shaped string values everywhere else.
func Mask(key string, value any) any {
	if sensitiveKeyRe.MatchString(key) {
		return "***"
	}
	s, ok := value.(string)
	if !ok {
		return value
	}
	if m := emailRe.FindStringSubmatch(s); m != nil {
		return m[1] + "***" + m[2]
	}
	if m := phoneRe.FindStringSubmatch(s); m != nil {
		return m[1] + "****" + m[2]
	}
	return value
}

// sqlSecretRe matches a sensitive column name (optionally quoted) followed by
// "=" or ":" and the literal value written after it.
var sqlSecretRe = regexp.MustCompile("(?i)((?:password|token|secret|signature)\\w*[`\\]\"]?\\s*[:=]\\s*)('[^']*'|[^\\s,;)]+)")

// RedactSQL replaces the literal values compared with or assigned to
// password/token/secret/signature columns in an already-interpolated debug
// SQL string (never used for anything but log lines) so slow-query logs
// don't leak a secret embedded in a WHERE clause.
func RedactSQL(sql string) string {
	return sqlSecretRe.ReplaceAllString(sql, "${1}***")
}
