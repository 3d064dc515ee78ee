package models

import "unicode/utf8"

// Query bounds.
const (
	DefaultListLimit   = 1000
	MaxListLimit       = 2000
	DefaultSearchLimit = 25
	MaxSearchLimit     = 50
	MinNamePrefixLen   = 3
)

// NameRangeSentinel closes the half-open name range. Names are compared
// byte-wise, so the search is case-sensitive.
const NameRangeSentinel = "\uf8ff"

// NameQuery selects registrations whose name starts with Prefix and, when
// BirthDate is set, whose birth date equals it exactly.
type NameQuery struct {
	Prefix    string
	BirthDate string
	Limit     int
}

// Range returns the half-open interval [lo, hi) covering the prefix.
func (q NameQuery) Range() (lo, hi string) {
	return q.Prefix, q.Prefix + NameRangeSentinel
}

// Matches applies the range and birth-date filter to a single record.
func (q NameQuery) Matches(r *Registration) bool {
	lo, hi := q.Range()
	if r.Name < lo || r.Name >= hi {
		return false
	}
	return q.BirthDate == "" || r.BirthDate == q.BirthDate
}

// PrefixLongEnough checks the minimum prefix length in characters.
func PrefixLongEnough(prefix string) bool {
	return utf8.RuneCountInString(prefix) >= MinNamePrefixLen
}

// ClampLimit bounds n to [1, max].
func ClampLimit(n, max int) int {
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}
