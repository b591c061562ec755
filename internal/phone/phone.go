// Package phone normalizes phone numbers to E.164.
package phone

import (
	"errors"
	"strings"
)

var ErrInvalidNumber = errors.New("phone: invalid number")

const (
	localDigits = 10
	minE164     = 8
	maxE164     = 15
)

// Normalize returns the E.164 form of raw ("+" followed by 8-15 digits).
// A bare 10-digit local number gets defaultCountryCode prepended. Normalizing
// an E.164 number returns it unchanged.
func Normalize(raw, defaultCountryCode string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidNumber
	}
	international := strings.HasPrefix(s, "+")

	digits := Digits(s)
	if !international && strings.HasPrefix(digits, "00") {
		digits = digits[2:]
		international = true
	}
	if !validChars(s) {
		return "", ErrInvalidNumber
	}

	if !international && len(digits) == localDigits {
		if digits[0] == '0' {
			return "", ErrInvalidNumber
		}
		cc := Digits(defaultCountryCode)
		if cc == "" {
			return "", ErrInvalidNumber
		}
		digits = cc + digits
	}
	if len(digits) < minE164 || len(digits) > maxE164 || digits[0] == '0' {
		return "", ErrInvalidNumber
	}
	return "+" + digits, nil
}

// Digits drops every non-digit character.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LookupVariants returns the forms a stored number may take: as received,
// digits only, and digits with a leading "+". Duplicates and empties are dropped.
func LookupVariants(raw string) []string {
	s := strings.TrimSpace(raw)
	d := Digits(s)
	out := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)
	for _, v := range []string{s, d, plus(d)} {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func plus(digits string) string {
	if digits == "" {
		return ""
	}
	return "+" + digits
}

func validChars(s string) bool {
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return true
}
