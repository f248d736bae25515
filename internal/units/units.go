// Package units resolves size and count settings written with an optional
// unit suffix ("64k", "5MB") into plain numbers.
package units

import (
	"math"
	"regexp"
	"strconv"
)

var unitPattern = regexp.MustCompile(`^(\d+)(k|MB)?$`)

// Resolve converts text such as "65536", "2k" or "5MB" into a number.
// A nil, unparseable or negative value resolves to 0, which callers treat
// as "not configured". So does a value that overflows int64.
func Resolve(text *string) int64 {
	if text == nil {
		return 0
	}

	if n, err := strconv.ParseInt(*text, 10, 32); err == nil {
		return max(n, 0)
	}

	m := unitPattern.FindStringSubmatch(*text)
	if m == nil {
		return 0
	}

	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	mult := multiplier(m[2])
	if mult == 0 || value > math.MaxInt64/mult {
		return 0
	}
	return value * mult
}

// ResolveString is Resolve for settings where an empty string means unset.
func ResolveString(text string) int64 {
	return Resolve(&text)
}

func multiplier(unit string) int64 {
	switch unit {
	case "k":
		return 1000
	case "MB":
		return 1024 * 1024
	default:
		return 0
	}
}
