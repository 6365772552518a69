// Package filterutil contains helpers shared by the rule parser and the
// lookup index.
package filterutil

import "strings"

const (
	// maxDomainNameLen is the maximum length of a domain name in the ASCII
	// form, including the dots.
	maxDomainNameLen = 253

	// maxLabelLen is the maximum length of a domain name label.
	maxLabelLen = 63

	// punycodePrefix is the prefix of a punycode-encoded label.
	punycodePrefix = "xn--"

	// minPunycodeTLDLen is the minimum length of a punycode-encoded top-level
	// domain.
	minPunycodeTLDLen = len("xn--wwww")
)

// IsDomainName returns true if name is a valid ASCII domain name.  Labels
// consist of letters, digits, and hyphens, and must not start or end with a
// hyphen (RFC 952).  The top-level domain either consists of at least two
// letters or is punycode-encoded.
func IsDomainName(name string) (ok bool) {
	if name == "" || len(name) > maxDomainNameLen {
		return false
	}

	for {
		label, rest, found := strings.Cut(name, ".")
		if !found {
			return isTLD(label)
		} else if !isLabel(label) {
			return false
		}

		name = rest
	}
}

// isLabel returns true if l is a valid domain name label.
func isLabel(l string) (ok bool) {
	if l == "" || len(l) > maxLabelLen || l[0] == '-' || l[len(l)-1] == '-' {
		return false
	}

	for i := range len(l) {
		if c := l[i]; !isLetter(c) && !isDigit(c) && c != '-' {
			return false
		}
	}

	return true
}

// isTLD returns true if l is a valid top-level domain label.
func isTLD(l string) (ok bool) {
	if len(l) < 2 || !isLabel(l) {
		return false
	}

	if len(l) >= minPunycodeTLDLen && strings.EqualFold(l[:len(punycodePrefix)], punycodePrefix) {
		return true
	}

	for i := range len(l) {
		if !isLetter(l[i]) {
			return false
		}
	}

	return true
}

// isLetter returns true if c is an ASCII letter.
func isLetter(c byte) (ok bool) {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isDigit returns true if c is an ASCII digit.
func isDigit(c byte) (ok bool) {
	return c >= '0' && c <= '9'
}
