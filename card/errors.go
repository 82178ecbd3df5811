package card

import (
	"fmt"
	"sort"
	"strings"
)

// FieldErrors maps field name to a user-correctable validation message.
// An Update returning FieldErrors has applied nothing.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "card: invalid input"
	}
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return "card: invalid input: " + strings.Join(parts, "; ")
}
