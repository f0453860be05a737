package parse

import (
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/Sriram-PR/statifier/pkg/utils"
)

// acceptedLinkPattern matches links the crawler keeps after resolution
var acceptedLinkPattern = regexp.MustCompile(`^(https?:|data:)`)

// CanonicalURL standardizes a URL for fingerprinting
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https), ensures empty path becomes "/", sorts query parameters and removes the fragment
// Trailing slashes are preserved: "/a" and "/a/" are distinct resources
// Does not modify the input *url.URL
func CanonicalURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	// Work on a copy
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	// Remove default ports
	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil { // Host included a port
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" && normalized.Opaque == "" {
		normalized.Path = "/"
	}

	normalized.RawQuery = sortQuery(normalized.RawQuery)
	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// sortQuery orders key=value pairs so that equivalent queries fingerprint identically
func sortQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := strings.Split(rawQuery, "&")
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// ParseAndNormalize parses a URL string using the stricter url.ParseRequestURI (requiring a scheme) and then canonicalizes it using CanonicalURL
// Returns the canonical string, the parsed URL object, and any parse error
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.ParseRequestURI(urlStr) // Stricter parsing
	if err != nil {
		return "", nil, utils.WrapErrorf(utils.ErrParsing, "invalid URL '%s': %v", urlStr, err)
	}
	return CanonicalURL(parsed), parsed, nil
}

// Resolve joins ref against base and returns the absolute URL string
// Surrounding whitespace in ref is ignored, as browsers do for attribute values
func Resolve(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", utils.WrapErrorf(utils.ErrParsing, "invalid URL reference '%s': %v", ref, err)
	}
	if base == nil {
		return refURL.String(), nil
	}
	return base.ResolveReference(refURL).String(), nil
}

// IsAcceptedLink reports whether a resolved link uses a scheme the crawler keeps (http, https or data)
func IsAcceptedLink(link string) bool {
	return acceptedLinkPattern.MatchString(link)
}

// IsFetchable reports whether a URL can be requested over the network.
// data: URLs are accepted by link extraction but are terminal.
func IsFetchable(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Fingerprints returns the canonical fingerprint of a request and the fingerprint of its
// index-equivalent form: the URL with "index.html" appended when it ends in "/", or "/index.html" otherwise
// Both are hex SHA-1 digests of method + canonical URL
func Fingerprints(method, rawURL string) (fp, fpIndex string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", utils.WrapErrorf(utils.ErrParsing, "invalid URL '%s': %v", rawURL, err)
	}
	method = strings.ToUpper(method)

	fp = utils.CalculateStringSHA1(method, CanonicalURL(u))

	indexed := *u
	if indexed.Path == "" {
		indexed.Path = "/"
	}
	if strings.HasSuffix(indexed.Path, "/") {
		indexed.Path += "index.html"
	} else {
		indexed.Path += "/index.html"
	}
	indexed.RawPath = ""
	fpIndex = utils.CalculateStringSHA1(method, CanonicalURL(&indexed))
	return fp, fpIndex, nil
}

// HostOf returns the lowercase host (with port, as in the URL) of an absolute URL, or "" if unparsable
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
