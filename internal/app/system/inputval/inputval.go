// internal/app/system/inputval/inputval.go
package inputval

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/impacthub/internal/app/system/apperr"
)

// IsValidEmail reports whether s is a bare addr-spec (no display name) with
// a well-formed local part and domain.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t<>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	return dotsOK(s[:at]) && dotsOK(s[at+1:])
}

func dotsOK(part string) bool {
	return !strings.HasPrefix(part, ".") && !strings.HasSuffix(part, ".") && !strings.Contains(part, "..")
}

// Errors collects field problems and reports them as one validation error.
type Errors struct {
	msgs []string
}

// Add records msg when bad is true.
func (e *Errors) Add(bad bool, msg string) {
	if bad {
		e.msgs = append(e.msgs, msg)
	}
}

// Required records "<field> is required" when value is blank.
func (e *Errors) Required(field, value string) {
	e.Add(strings.TrimSpace(value) == "", field+" is required")
}

// MaxLen records a problem when value has more than n characters.
func (e *Errors) MaxLen(field, value string, n int) {
	e.Add(utf8.RuneCountInString(value) > n, field+" is too long")
}

// Email records a problem when value is present but malformed.
func (e *Errors) Email(field, value string) {
	e.Add(strings.TrimSpace(value) != "" && !IsValidEmail(value), field+" is not a valid email address")
}

// Err returns nil when nothing was recorded, otherwise an apperr
// validation error listing every problem.
func (e *Errors) Err() error {
	if len(e.msgs) == 0 {
		return nil
	}
	return apperr.Invalid(strings.Join(e.msgs, "; "))
}
