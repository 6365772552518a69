package filterutil_test

import (
	"testing"

	"github.com/AdguardTeam/flatfilter/filterutil"
	"github.com/stretchr/testify/assert"
)

func TestIsIP(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   string
		want bool
	}{{
		name: "ipv4",
		in:   "127.0.0.1",
		want: true,
	}, {
		name: "ipv6",
		in:   "2001:0db8:0000:0000:0000:8a2e:0370:7334",
		want: true,
	}, {
		name: "ipv6_brackets",
		in:   "[2001:db8::8a2e:370:7334]",
		want: true,
	}, {
		name: "hex_word",
		in:   "abc",
		want: false,
	}, {
		name: "domain",
		in:   "domain.com",
		want: false,
	}, {
		name: "bad_ipv4",
		in:   "300.0.0.1",
		want: false,
	}, {
		name: "short",
		in:   ":",
		want: false,
	}, {
		name: "unspecified_ipv6",
		in:   "::",
		want: true,
	}, {
		name: "empty",
		in:   "",
		want: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, filterutil.IsIP(tc.in))
		})
	}
}
