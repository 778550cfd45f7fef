package photopipe

import (
	"regexp"
	"strings"
)

// License handling is strict by construction: only license families on the
// allow-list below may ever reach a PhotoRecord. Matching is token-aware so
// that "CC-BY-NC-4.0" is rejected even though it contains "CC-BY": the NC
// and ND variants are never permitted.

const canonicalPublicDomain = "Public Domain"

var versionTokenRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

// licenseTokens uppercases the input and splits it on whitespace and
// punctuation separators into comparison tokens.
func licenseTokens(license string) []string {
	upper := strings.ToUpper(strings.TrimSpace(license))
	// '.' is not a separator so version tokens like "4.0" stay whole.
	return strings.FieldsFunc(upper, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '-', '_', '/', ',', '(', ')':
			return true
		}
		return false
	})
}

// IsAllowed reports whether a free-text license string belongs to a
// permitted family: CC0, CC-BY (any version), CC-BY-SA (any version),
// Public Domain, or PDM. Pure and case-insensitive; never panics.
func IsAllowed(license string) bool {
	_, ok := classifyLicense(licenseTokens(license))
	return ok
}

// Normalize maps any recognized license variant to one canonical string.
// CC0, Public Domain, and PDM variants all canonicalize to "Public Domain";
// CC-BY and CC-BY-SA keep their most specific recognized version, falling
// back to the bare family name when none is present. Unrecognized input
// returns a best-effort uppercase hyphenated form (with IsAllowed false).
// Idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(license string) string {
	tokens := licenseTokens(license)
	if canonical, ok := classifyLicense(tokens); ok {
		return canonical
	}
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, "-")
}

// classifyLicense returns the canonical form of a tokenized license and
// whether it is on the allow-list.
func classifyLicense(tokens []string) (string, bool) {
	if len(tokens) == 0 {
		return "", false
	}

	// NC / ND variants are never permitted, anywhere in the string.
	for _, t := range tokens {
		switch t {
		case "NC", "ND", "NONCOMMERCIAL", "NODERIVATIVES", "NODERIVS":
			return "", false
		}
	}

	// Public-domain family.
	switch {
	case tokens[0] == "CC0":
		return canonicalPublicDomain, true
	case tokens[0] == "PDM":
		return canonicalPublicDomain, true
	case tokens[0] == "CC" && len(tokens) == 2 && tokens[1] == "0":
		return canonicalPublicDomain, true
	case tokens[0] == "PUBLIC" && len(tokens) >= 2 && tokens[1] == "DOMAIN":
		return canonicalPublicDomain, true
	}

	// Attribution family: CC-BY and CC-BY-SA, optional version suffix.
	if tokens[0] != "CC" || len(tokens) < 2 || tokens[1] != "BY" {
		return "", false
	}
	rest := tokens[2:]
	family := "CC-BY"
	if len(rest) > 0 && rest[0] == "SA" {
		family = "CC-BY-SA"
		rest = rest[1:]
	}
	switch {
	case len(rest) == 0:
		return family, true
	case len(rest) == 1 && versionTokenRe.MatchString(rest[0]):
		return family + "-" + rest[0], true
	}
	// Unknown trailing tokens mean an unrecognized variant; reject.
	return "", false
}
