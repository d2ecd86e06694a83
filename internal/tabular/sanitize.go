package tabular

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	invalidIdentRun = regexp.MustCompile(`[^0-9a-zA-Z_]`)

	// SQL keywords that must never appear bare as an identifier.
	reservedIdentifiers = map[string]struct{}{
		"TABLE": {}, "SELECT": {}, "UPDATE": {}, "DELETE": {},
		"INSERT": {}, "FROM": {}, "WHERE": {}, "INDEX": {}, "KEY": {},
	}
)

// sanitizeIdentifier turns an arbitrary sheet or column name into a safe
// Postgres identifier. The prefix is applied when the cleaned name is
// empty, starts with a digit, or collides with a reserved word.
func sanitizeIdentifier(name, prefix string) string {
	name = whitespaceRun.ReplaceAllString(name, "_")
	name = strings.ToLower(invalidIdentRun.ReplaceAllString(name, ""))

	_, reserved := reservedIdentifiers[strings.ToUpper(name)]
	if name == "" || name[0] >= '0' && name[0] <= '9' || reserved {
		name = prefix + name
	}
	if name == "" {
		name = prefix + "unnamed_" + uuid.NewString()[:4]
	}
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}
