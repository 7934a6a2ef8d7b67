package common

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	hostnameLabelRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	tldRe           = regexp.MustCompile(`^[a-z]{2,}$`)
	assetRe         = regexp.MustCompile(`(?i)\.(pdf|jpg|jpeg|png|gif|webp|svg|ico|css|js|zip|rar|7z|docx?|xlsx?|pptx?|mp[34]|woff2?)($|\?)`)
)

// ValidateHostname checks that a domain has hostname shape: dot-separated
// labels of [a-z0-9-], no empty labels, TLD of at least 2 alpha chars.
// Case-insensitive; schemes and paths are rejected.
func ValidateHostname(domain string) error {
	host := strings.ToLower(strings.TrimSpace(domain))
	if host == "" {
		return fmt.Errorf("empty hostname")
	}
	if strings.ContainsAny(host, "/: ") {
		return fmt.Errorf("hostname %q must not contain scheme or path", domain)
	}
	if len(host) > 253 {
		return fmt.Errorf("hostname %q exceeds 253 characters", domain)
	}

	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return fmt.Errorf("hostname %q has no top-level domain", domain)
	}
	for _, label := range labels {
		if label == "" {
			return fmt.Errorf("hostname %q contains an empty label", domain)
		}
		if !hostnameLabelRe.MatchString(label) {
			return fmt.Errorf("hostname %q contains invalid label %q", domain, label)
		}
	}
	if !tldRe.MatchString(labels[len(labels)-1]) {
		return fmt.Errorf("hostname %q has invalid top-level domain %q", domain, labels[len(labels)-1])
	}
	return nil
}

// CleanDomain strips scheme, path, and trailing slashes and lowercases the
// hostname, so "HTTPS://Example.com/" and "example.com" compare equal.
func CleanDomain(domain string) string {
	d := strings.TrimSpace(strings.ToLower(domain))
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, "/")
}

// EnsureScheme prepends http:// when the URL has no scheme.
func EnsureScheme(rawURL string) string {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	return "http://" + rawURL
}

// NormalizeURL lowercases scheme and host, strips the fragment and any
// trailing slash. The input must be absolute.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return strings.TrimSuffix(u.String(), "/"), nil
}

// VisitKey derives the deduplication key for a URL: scheme-insensitive,
// trailing-slash-insensitive, fragment-stripped. Two URLs with the same
// key are fetched at most once.
func VisitKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	key := strings.ToLower(u.Host) + strings.TrimSuffix(u.Path, "/")
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// SameSite reports whether candidate is an http(s) URL on the same host as
// base.
func SameSite(candidate, base string) bool {
	cu, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	bu, err := url.Parse(base)
	if err != nil {
		return false
	}
	if cu.Scheme != "http" && cu.Scheme != "https" {
		return false
	}
	return strings.EqualFold(cu.Host, bu.Host)
}

// IsAsset reports whether a URL points at a static asset or download
// rather than a crawlable page.
func IsAsset(rawURL string) bool {
	return assetRe.MatchString(rawURL)
}

// ResolveLink absolutizes an anchor href against its page URL. Returns
// false for hrefs that are not crawlable (javascript:, mailto:, tel:,
// data:, fragments).
func ResolveLink(href, pageURL string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(strings.ToLower(href), prefix) {
			return "", false
		}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	return strings.TrimSuffix(resolved.String(), "/"), true
}
