package filterutil

import (
	"net/netip"
	"strings"
)

// IsIP returns true if s is an IPv4 or IPv6 address, optionally enclosed in
// square brackets.  Strings that contain anything but hexadecimal digits, dots,
// and colons are rejected without parsing.
func IsIP(s string) (ok bool) {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if len(s) < len("::") || strings.IndexFunc(s, isNotAddrRune) != -1 {
		return false
	}

	_, err := netip.ParseAddr(s)

	return err == nil
}

// isNotAddrRune returns true if r cannot appear in the text form of an IP
// address.
func isNotAddrRune(r rune) (ok bool) {
	switch {
	case
		r == '.',
		r == ':',
		r >= '0' && r <= '9',
		r >= 'a' && r <= 'f',
		r >= 'A' && r <= 'F':
		return false
	default:
		return true
	}
}
