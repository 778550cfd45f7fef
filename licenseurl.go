package photopipe

import (
	"html"
	"regexp"
	"strings"
)

// ccPathSegments are URL path prefixes that identify a Creative Commons
// license or public-domain dedication (as opposed to the CC homepage).
var ccPathSegments = []string{
	"creativecommons.org/licenses/",
	"creativecommons.org/publicdomain/",
}

// IsCCLicenseURL reports whether rawURL points to a Creative Commons license
// or public-domain dedication. Case-insensitive; works with https, http, and
// protocol-relative URLs. The bare CC homepage does not count.
func IsCCLicenseURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, seg := range ccPathSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	return false
}

// ccLicensePathRe captures the deed path of a CC license URL:
// "by-sa/4.0", "by/4.0", "zero/1.0", "mark/1.0".
var ccLicensePathRe = regexp.MustCompile(
	`(?i)creativecommons\.org/(licenses|publicdomain)/([a-z-]+)(?:/(\d+(?:\.\d+)?))?`,
)

// LicenseFromCCURL converts a Creative Commons license URL to the license
// string used by IsAllowed / Normalize. Returns "" for non-CC URLs.
func LicenseFromCCURL(rawURL string) string {
	m := ccLicensePathRe.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	kind := strings.ToLower(m[1])
	deed := strings.ToLower(m[2])
	version := m[3]

	if kind == "publicdomain" {
		// zero/ and mark/ both canonicalize to "Public Domain".
		return canonicalPublicDomain
	}

	family := "CC-" + strings.ToUpper(deed)
	if version == "" {
		return Normalize(family)
	}
	return Normalize(family + "-" + version)
}

// Compiled regexes for finding a license URL in page HTML.
// rel="license" is the most authoritative and tried first.
var (
	relHrefRe = regexp.MustCompile(`(?i)rel=["']license["'][^>]*href=["']([^"']+)["']`)
	hrefRelRe = regexp.MustCompile(`(?i)href=["']([^"']+)["'][^>]*rel=["']license["']`)
	bareCCRe  = regexp.MustCompile(
		`(?i)(?:href|content)=["']((?:https?:)?//creativecommons\.org/(?:licenses|publicdomain)/[^"']+)["']`,
	)
)

// PageLicense scans page HTML for a declared Creative Commons license and
// returns its canonical license string, or "" when the page declares none.
func PageLicense(pageHTML string) string {
	for _, re := range []*regexp.Regexp{relHrefRe, hrefRelRe} {
		if m := re.FindStringSubmatch(pageHTML); m != nil {
			if u := html.UnescapeString(m[1]); IsCCLicenseURL(u) {
				return LicenseFromCCURL(u)
			}
		}
	}
	if m := bareCCRe.FindStringSubmatch(pageHTML); m != nil {
		return LicenseFromCCURL(html.UnescapeString(m[1]))
	}
	return ""
}
