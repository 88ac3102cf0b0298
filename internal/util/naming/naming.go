package naming

import (
	"strconv"
	"strings"
	"unicode"
)

const (
	// MaxLength is the longest name the platform accepts for groups, templates
	// and guest hostnames.
	MaxLength = 13

	// Placeholder replaces names that normalize to nothing.
	Placeholder = "unnamed"
)

// Normalize lower-cases s and keeps only characters valid in a platform name.
// The first kept character must be a letter; after that letters, digits and
// hyphens are kept, spaces become hyphens and everything else is dropped.
func Normalize(s string) string {
	var b strings.Builder
	n := 0

	for _, c := range strings.ToLower(s) {
		if n >= MaxLength {
			break
		}
		switch {
		case n == 0:
			if !unicode.IsLetter(c) {
				continue
			}
		case unicode.IsLetter(c) || unicode.IsDigit(c) || c == '-':
		case c == ' ':
			c = '-'
		default:
			continue
		}
		b.WriteRune(c)
		n++
	}

	if n == 0 {
		return Placeholder
	}
	return b.String()
}

// Hostname returns the guest hostname for the index-th (1-based) of total
// machines built from the same name. Machines in a multi-machine group get the
// index appended so their hostnames stay distinct.
func Hostname(name string, index, total int) string {
	base := Normalize(name)
	if total < 2 {
		return base
	}
	return base + "-" + strconv.Itoa(index)
}
