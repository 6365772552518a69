// Package rules contains the network filter record and the parser that
// produces it from the adblock rule syntax.
package rules

import (
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// Parser errors.
const (
	// ErrTooShort is returned for rules that contain no pattern at all.
	ErrTooShort errors.Error = "the rule is too short"

	// ErrUnsupportedOption is returned for unknown $-options.
	ErrUnsupportedOption errors.Error = "unsupported option"

	// ErrNegatedOption is returned when an option that cannot be negated is.
	ErrNegatedOption errors.Error = "option cannot be negated"

	// ErrEmptyOptionValue is returned when an option requires a value.
	ErrEmptyOptionValue errors.Error = "option value is empty"

	// ErrCSPWithContentType is returned for $csp rules with content types.
	ErrCSPWithContentType errors.Error = "csp with content type"

	// ErrMultipleModifiers is returned when more than one of $redirect,
	// $redirect-rule, $csp, and $removeparam is used.
	ErrMultipleModifiers errors.Error = "multiple modifier options"

	// ErrInvalidDomain is returned for malformed $domain values.
	ErrInvalidDomain errors.Error = "invalid domain"

	// ErrMatchCaseWithoutRegex is returned for $match-case on a rule which is
	// not a /regex/ rule.
	ErrMatchCaseWithoutRegex errors.Error = "match-case without full regex"

	// ErrGenericHideWithoutException is returned for $generichide blocking
	// rules.
	ErrGenericHideWithoutException errors.Error = "generichide without exception"

	// ErrRemoveparamWithException is returned for @@...$removeparam rules.
	ErrRemoveparamWithException errors.Error = "removeparam with exception"
)

const (
	maskWhiteList    = "@@"
	maskRegexRule    = "/"
	optionsDelimiter = '$'
	escapeCharacter  = '\\'
)

// cosmeticRulesMarkers are the separators of element hiding, CSS, scriptlet,
// and HTML filtering rules.  The longest markers go first.
var cosmeticRulesMarkers = []string{
	"#@$?#", "#@%#", "#@?#", "#@$#", "#$?#", "##^", "#?#", "#$#", "#%#",
	"#@#", "##",
}

// isComment checks if the line is a comment.
func isComment(line string) (ok bool) {
	if line == "" {
		return false
	}

	switch line[0] {
	case '!', '[':
		return true
	case '#':
		return !isCosmetic(line)
	default:
		return false
	}
}

// isCosmetic checks if the line is a cosmetic rule.
func isCosmetic(line string) (ok bool) {
	for _, marker := range cosmeticRulesMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}

	return false
}
