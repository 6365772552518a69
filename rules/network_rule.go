package rules

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// contentTypes maps content type option names to their mask bits.
var contentTypes = map[string]Mask{
	"image":          MaskFromImage,
	"media":          MaskFromMedia,
	"object":         MaskFromObject,
	"other":          MaskFromOther,
	"ping":           MaskFromPing,
	"beacon":         MaskFromPing,
	"script":         MaskFromScript,
	"stylesheet":     MaskFromStylesheet,
	"css":            MaskFromStylesheet,
	"subdocument":    MaskFromSubdocument,
	"frame":          MaskFromSubdocument,
	"xmlhttprequest": MaskFromXMLHTTPRequest,
	"xhr":            MaskFromXMLHTTPRequest,
	"websocket":      MaskFromWebsocket,
	"font":           MaskFromFont,
}

// optionsState accumulates the parsed $-options of a single rule.
type optionsState struct {
	// positive are the content types from e.g. $script.
	positive Mask

	// negative are the content types from e.g. $~script.
	negative Mask

	// modifiers is the number of $redirect, $redirect-rule, $csp, and
	// $removeparam options.
	modifiers int

	hasCSP         bool
	hasContentType bool
}

// NewNetworkFilter parses a network rule.  It returns nil and no error for
// empty lines, comments, and cosmetic rules.  If keepRawText is true, line is
// kept as the filter's RawLine.
func NewNetworkFilter(line string, id uint64, keepRawText bool) (f *NetworkFilter, err error) {
	line = strings.TrimSpace(line)
	if line == "" || isComment(line) || isCosmetic(line) {
		return nil, nil
	}

	pattern, options, exception, err := splitRule(line)
	if err != nil {
		return nil, err
	}

	f = &NetworkFilter{
		ID:   id,
		Mask: MaskThirdParty | MaskFirstParty | MaskFromHTTPS | MaskFromHTTP,
	}
	f.Mask = f.Mask.With(MaskIsException, exception)

	st := &optionsState{}
	err = f.loadOptions(options, st)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", line, err)
	}

	f.applyContentTypes(st)

	err = f.loadPattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", line, err)
	}

	switch {
	case f.Mask.Has(MaskGenericHide) && !exception:
		return nil, fmt.Errorf("parsing %q: %w", line, ErrGenericHideWithoutException)
	case f.Mask.Has(MaskIsRemoveparam) && exception:
		return nil, fmt.Errorf("parsing %q: %w", line, ErrRemoveparamWithException)
	}

	// Only "||example.org^" rules without any types implicitly match
	// documents.
	if st.positive&MaskFromAllTypes == 0 &&
		st.negative&MaskFromAllTypes == 0 &&
		f.Mask.Has(MaskIsHostnameAnchor|MaskIsRightAnchor) &&
		!strings.HasSuffix(pattern, "|") &&
		!f.Mask.Has(MaskIsRemoveparam) {
		f.Mask |= MaskFromAllTypes
	}

	f.Mask &^= st.negative

	if keepRawText {
		f.RawLine = line
	}

	return f, nil
}

// loadOptions parses the comma-separated options of the rule.
func (f *NetworkFilter) loadOptions(options string, st *optionsState) (err error) {
	if options == "" {
		return nil
	}

	for _, option := range splitOptions(options) {
		name, value, _ := strings.Cut(option, "=")
		err = f.loadOption(name, value, st)
		if err != nil {
			return fmt.Errorf("option %q: %w", name, err)
		}
	}

	switch {
	case st.hasCSP && st.hasContentType:
		return ErrCSPWithContentType
	case st.modifiers > 1:
		return ErrMultipleModifiers
	default:
		return nil
	}
}

// loadOption loads a single option with its value, if any.
//
//nolint:gocyclo
func (f *NetworkFilter) loadOption(name, value string, st *optionsState) (err error) {
	negated := strings.HasPrefix(name, "~")
	if negated {
		name = name[1:]
	}

	if t, ok := contentTypes[name]; ok {
		st.hasContentType = true
		if negated {
			st.negative |= t
		} else {
			st.positive |= t
		}

		return nil
	}

	switch name {
	case "third-party", "3p":
		f.Mask = f.Mask.With(partyMask(negated), false)

		return nil
	case "first-party", "1p":
		f.Mask = f.Mask.With(partyMask(!negated), false)

		return nil
	}

	if negated {
		return ErrNegatedOption
	}

	switch name {
	case "important":
		f.Mask |= MaskIsImportant
	case "match-case":
		f.Mask |= MaskMatchCase
	case "badfilter":
		f.Mask |= MaskBadFilter
	case "generichide", "ghide":
		f.Mask |= MaskGenericHide
	case "document", "doc":
		st.hasContentType = true
		st.positive |= MaskFromDocument
	case "all":
		st.hasContentType = true
		st.positive |= MaskFromAllTypes
	case "domain", "from":
		f.OptDomains, f.OptNotDomains, err = loadDomains(value)
	case "tag":
		f.Tag = value
	case "redirect", "redirect-rule":
		if value == "" {
			return ErrEmptyOptionValue
		}

		st.modifiers++
		f.Mask |= MaskIsRedirect
		f.Mask = f.Mask.With(MaskAlsoBlockRedirect, name == "redirect")
		f.ModifierOption = value
	case "removeparam":
		if value == "" {
			return ErrEmptyOptionValue
		}

		st.modifiers++
		f.Mask |= MaskIsRemoveparam
		f.ModifierOption = value
	case "csp":
		// An empty $csp is valid for exceptions and disables every policy.
		st.modifiers++
		st.hasCSP = true
		f.Mask |= MaskIsCSP | MaskFromDocument
		f.ModifierOption = value
	default:
		return ErrUnsupportedOption
	}

	return err
}

// partyMask returns the party flag that a $third-party or $first-party option
// clears.
func partyMask(firstPartyOnly bool) (m Mask) {
	if firstPartyOnly {
		return MaskThirdParty
	}

	return MaskFirstParty
}

// applyContentTypes sets the content type flags of the mask.
func (f *NetworkFilter) applyContentTypes(st *optionsState) {
	f.Mask |= st.positive

	removeparam := f.Mask.Has(MaskIsRemoveparam)

	// Negated network types implicitly enable every other network type.
	if !removeparam && st.negative&MaskFromNetworkTypes != 0 {
		f.Mask |= MaskFromNetworkTypes
	}

	if st.positive&MaskFromAllTypes != 0 {
		return
	}

	if removeparam {
		f.Mask |= MaskFromDocument | MaskFromSubdocument | MaskFromXMLHTTPRequest
	} else {
		f.Mask |= MaskFromNetworkTypes
	}
}

// loadPattern parses the pattern part of the rule and sets the anchors, the
// regex flags, the hostname, and the filter part.
//
//nolint:gocyclo
func (f *NetworkFilter) loadPattern(pattern string) (err error) {
	if isRegexPattern(pattern) {
		f.Mask |= MaskIsCompleteRegex
		f.Mask = f.Mask.With(MaskIsRegex, checkIsRegex(pattern))
		f.Filter = SimplePart(pattern)

		return nil
	} else if f.Mask.Has(MaskMatchCase) {
		return ErrMatchCaseWithoutRegex
	}

	switch {
	case strings.HasPrefix(pattern, "||"):
		f.Mask |= MaskIsHostnameAnchor
		pattern = pattern[2:]
	case strings.HasPrefix(pattern, "|"):
		f.Mask |= MaskIsLeftAnchor
		pattern = pattern[1:]
	}

	if strings.HasSuffix(pattern, "|") {
		f.Mask |= MaskIsRightAnchor
		pattern = pattern[:len(pattern)-1]
	}

	f.Mask = f.Mask.With(MaskIsRegex, checkIsRegex(pattern))

	start, end := 0, len(pattern)

	var hostname string
	if f.IsHostnameAnchor() {
		hostname, start = f.splitHostname(pattern)
	}

	if end > start && strings.HasSuffix(pattern, "*") {
		end--
	}

	if end > start && pattern[start] == '*' {
		f.Mask &^= MaskIsLeftAnchor
		start++
	}

	if f.Mask.Has(MaskIsLeftAnchor) {
		start = f.transformProtocol(pattern[start:end], start, end)
	}

	if end > start {
		lit := strings.ToLower(pattern[start:end])
		f.Mask = f.Mask.With(MaskIsRegex, checkIsRegex(lit))
		f.Filter = SimplePart(lit)
	} else {
		f.Filter = EmptyPart()
	}

	if hostname != "" {
		f.Hostname, err = normalizeHostname(hostname)
	}

	return err
}

// splitHostname splits the pattern of a hostname-anchored rule into the
// hostname and the start index of the rest of the pattern.
func (f *NetworkFilter) splitHostname(pattern string) (hostname string, start int) {
	if !checkIsRegex(pattern) {
		i := strings.IndexByte(pattern, '/')
		if i < 0 {
			return pattern, len(pattern)
		}

		f.Mask |= MaskIsLeftAnchor

		return pattern[:i], i
	}

	i := strings.IndexAny(pattern, "/^*")
	if pattern[i] == '*' {
		f.Mask |= MaskIsHostnameRegex
	}

	// A lone "^" after the hostname only says that no other label follows.
	if len(pattern)-i == 1 && pattern[i] == '^' {
		f.Mask &^= MaskIsRegex
		f.Mask |= MaskIsRightAnchor

		return pattern[:i], len(pattern)
	}

	f.Mask |= MaskIsLeftAnchor

	return pattern[:i], i
}

// transformProtocol turns left-anchored protocol-only patterns into scheme
// flags.  It returns the new start index.
func (f *NetworkFilter) transformProtocol(rest string, start, end int) (newStart int) {
	var http, https, ws bool
	switch rest {
	case "ws://":
		ws = true
	case "http://":
		http = true
	case "https://":
		https = true
	case "http*://":
		http, https = true, true
	default:
		return start
	}

	f.Mask = f.Mask.With(MaskFromHTTP, http).With(MaskFromHTTPS, https)
	if ws {
		f.Mask |= MaskFromWebsocket
	}

	f.Mask &^= MaskIsLeftAnchor

	return end
}

// normalizeHostname lowercases the hostname, strips the leading "www.", and
// converts it to punycode.
func normalizeHostname(hostname string) (norm string, err error) {
	norm = strings.ToLower(strings.TrimPrefix(hostname, "www."))
	if isASCII(norm) {
		return norm, nil
	}

	norm, err = idna.Lookup.ToASCII(norm)
	if err != nil {
		return "", fmt.Errorf("hostname %q: %w", hostname, err)
	}

	return norm, nil
}

// isRegexPattern returns true if pattern is a /regex/.
func isRegexPattern(pattern string) (ok bool) {
	return len(pattern) > 1 &&
		strings.HasPrefix(pattern, maskRegexRule) &&
		strings.HasSuffix(pattern, maskRegexRule)
}

// splitRule splits the rule text into the pattern and the options.
func splitRule(line string) (pattern, options string, exception bool, err error) {
	body, exception := strings.CutPrefix(line, maskWhiteList)
	if body == "" {
		return "", "", false, fmt.Errorf("%w: %s", ErrTooShort, line)
	}

	// Options are never parsed inside of a regex rule.
	if isRegexPattern(body) {
		return body, "", exception, nil
	}

	i := lastOptionsDelimiter(body)
	if i == -1 {
		return body, "", exception, nil
	}

	options = strings.ReplaceAll(body[i+1:], `\$`, string(optionsDelimiter))

	return body[:i], options, exception, nil
}

// lastOptionsDelimiter returns the index of the last unescaped options
// delimiter in s or -1 if there is none.  A delimiter at the very end of s is
// a part of the pattern.
func lastOptionsDelimiter(s string) (idx int) {
	for i := len(s) - 2; i >= 0; i-- {
		if s[i] == optionsDelimiter && (i == 0 || s[i-1] != escapeCharacter) {
			return i
		}
	}

	return -1
}
