package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/kgest/internal/kg"
)

// maxFieldChars bounds each triplet field.
const maxFieldChars = 200

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|` +
		`new\s+instructions)`,
)

// ValidateTriplet normalizes whitespace in t and reports whether it is
// usable. Empty or overlong fields, prompt-injection text, and triplets whose
// subject and object are the same entity are rejected.
func ValidateTriplet(t *kg.Triplet) bool {
	if t == nil {
		return false
	}
	t.Subject = collapse(t.Subject)
	t.Predicate = collapse(t.Predicate)
	t.Object = collapse(t.Object)

	for _, f := range []string{t.Subject, t.Predicate, t.Object} {
		if f == "" || utf8.RuneCountInString(f) > maxFieldChars {
			return false
		}
		if injectionPattern.MatchString(f) {
			return false
		}
	}
	return !strings.EqualFold(t.Subject, t.Object)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
