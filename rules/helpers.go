package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/flatfilter/filterutil"
	"golang.org/x/net/idna"
)

// splitOptions splits the options part of a rule by commas.  A comma preceded
// by escapeCharacter belongs to the option value.  Empty options are skipped.
func splitOptions(options string) (opts []string) {
	var sb strings.Builder
	flush := func() {
		if sb.Len() > 0 {
			opts = append(opts, sb.String())
			sb.Reset()
		}
	}

	for i := 0; i < len(options); i++ {
		c := options[i]
		switch {
		case c == escapeCharacter && i+1 < len(options) && options[i+1] == ',':
			sb.WriteByte(',')
			i++
		case c == ',':
			flush()
		default:
			sb.WriteByte(c)
		}
	}

	flush()

	return opts
}

// loadDomains parses the value of the $domain option.  It returns the sorted,
// deduplicated hashes of the permitted and the restricted domains.  Either
// result is nil when there are no such domains.
func loadDomains(value string) (permitted, restricted []uint32, err error) {
	if value == "" {
		return nil, nil, fmt.Errorf("domain: %w", ErrEmptyOptionValue)
	}

	for _, d := range strings.Split(value, "|") {
		negated := strings.HasPrefix(d, "~")
		if negated {
			d = d[1:]
		}

		d, err = normalizeDomain(d)
		if err != nil {
			return nil, nil, err
		}

		h := filterutil.FastHash(d)
		if negated {
			restricted = append(restricted, h)
		} else {
			permitted = append(permitted, h)
		}
	}

	return sortedHashes(permitted), sortedHashes(restricted), nil
}

// normalizeDomain lowercases d, converts it to punycode, and validates it.
// Entity domains like "google.*" and IP addresses are accepted as is.
func normalizeDomain(d string) (norm string, err error) {
	norm = strings.ToLower(d)
	if !isASCII(norm) {
		norm, err = idna.Lookup.ToASCII(norm)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %w", ErrInvalidDomain, d, err)
		}
	}

	switch {
	case
		filterutil.IsDomainName(norm),
		strings.HasSuffix(norm, ".*") && filterutil.IsDomainName(norm[:len(norm)-2]+".com"),
		filterutil.IsIP(norm):
		return norm, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, d)
	}
}

// sortedHashes sorts and deduplicates hashes in place.
func sortedHashes(hashes []uint32) (res []uint32) {
	if len(hashes) == 0 {
		return nil
	}

	slices.Sort(hashes)

	return slices.Compact(hashes)
}

// isASCII returns true if s only contains ASCII characters.
func isASCII(s string) (ok bool) {
	for i := range len(s) {
		if s[i] >= 0x80 {
			return false
		}
	}

	return true
}

// checkIsRegex returns true if the pattern contains a wildcard or a separator
// character and thus cannot be matched as a plain substring.
func checkIsRegex(pattern string) (ok bool) {
	return strings.ContainsAny(pattern, "*^")
}
