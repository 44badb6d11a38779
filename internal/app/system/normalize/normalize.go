// internal/app/system/normalize/normalize.go
package normalize

import "strings"

// Email trims and lower-cases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name and collapses runs of inner whitespace.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Role trims and upper-cases a role name ("ngo_admin" -> "NGO_ADMIN").
func Role(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Status trims and upper-cases a status value.
func Status(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// QueryParam trims a raw query-string value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// Tags trims each tag, drops empties and case-insensitive duplicates, and
// keeps first-seen order. Returns a non-nil slice.
func Tags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

// CSV splits a comma-separated list into trimmed, non-empty items.
func CSV(s string) []string {
	return Tags(strings.Split(s, ","))
}
