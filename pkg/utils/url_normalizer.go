package utils

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// defaultTrackingKeys are query parameters stripped during canonicalization.
// Two listing URLs that differ only in these must collapse to one canonical key.
var defaultTrackingKeys = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"yclid":        {},
	"mc_eid":       {},
	"mc_cid":       {},
	"igshid":       {},
	"spm":          {},
	"ref":          {},
	"affid":        {},
	"affidname":    {},
}

var defaultTrackingPrefixes = []string{"utm", "ga_", "icid", "mkt_"}

var multiSlashPattern = regexp.MustCompile(`/{2,}`)

type queryParam struct {
	key   string
	value string
}

// CanonicalizeURL generates a stable canonical URL for listing deduplication.
//
// The canonical form enforces https, lower-cases the host and strips a leading
// www., drops the default https port, collapses repeated path slashes, strips a
// trailing slash (except root), removes tracking params and the fragment,
// deduplicates remaining query params, and sorts them by key. The function is
// idempotent: canonicalizing a canonical URL is a no-op.
//
// Returns "" for inputs that cannot be parsed; callers fall back to the raw URL.
func CanonicalizeURL(rawURL string) string {
	absolute := ensureAbsolute(rawURL)
	if absolute == "" {
		return ""
	}

	parsed, err := url.Parse(absolute)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")
	if h, port, ok := strings.Cut(host, ":"); ok && port == "443" {
		host = h
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	path = multiSlashPattern.ReplaceAllString(path, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}

	params := parseQueryParams(parsed.RawQuery)
	params = dropTrackingParams(params)
	params = deduplicateParams(params)
	sort.SliceStable(params, func(i, j int) bool {
		return strings.ToLower(params[i].key) < strings.ToLower(params[j].key)
	})

	canonical := "https://" + host + path
	if encoded := encodeQueryParams(params); encoded != "" {
		canonical += "?" + encoded
	}
	return canonical
}

// ensureAbsolute coerces partial URLs (protocol-relative, bare domains,
// www-prefixed hosts) into absolute https form before parsing.
func ensureAbsolute(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lowered := strings.ToLower(raw)
	if strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "www.") {
		return "https://" + raw
	}
	if strings.HasPrefix(raw, "/") {
		// Bare paths show up in scraped result payloads; assume the search origin.
		return "https://www.google.com" + raw
	}
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}

func parseQueryParams(rawQuery string) []queryParam {
	if rawQuery == "" {
		return nil
	}
	var params []queryParam
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found || value == "" {
			// Blank values carry no dedup signal; dropping them keeps
			// "?a=1&b=" and "?a=1" canonically identical.
			continue
		}
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			decodedKey = key
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			decodedValue = value
		}
		params = append(params, queryParam{key: decodedKey, value: decodedValue})
	}
	return params
}

func dropTrackingParams(params []queryParam) []queryParam {
	cleaned := make([]queryParam, 0, len(params))
	for _, p := range params {
		keyLower := strings.ToLower(p.key)
		if _, tracked := defaultTrackingKeys[keyLower]; tracked {
			continue
		}
		prefixed := false
		for _, prefix := range defaultTrackingPrefixes {
			if strings.HasPrefix(keyLower, prefix) {
				prefixed = true
				break
			}
		}
		if prefixed {
			continue
		}
		cleaned = append(cleaned, p)
	}
	return cleaned
}

func deduplicateParams(params []queryParam) []queryParam {
	type signature struct {
		key   string
		value string
	}
	seen := make(map[signature]struct{}, len(params))
	deduped := make([]queryParam, 0, len(params))
	for _, p := range params {
		sig := signature{key: strings.ToLower(p.key), value: p.value}
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		deduped = append(deduped, p)
	}
	return deduped
}

func encodeQueryParams(params []queryParam) string {
	if len(params) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.value))
	}
	return sb.String()
}

// MerchantDomain extracts a bare merchant domain (lower-cased, www-stripped)
// from a listing URL. Returns "" when the URL has no usable host.
func MerchantDomain(rawURL string) string {
	absolute := ensureAbsolute(rawURL)
	if absolute == "" {
		return ""
	}
	parsed, err := url.Parse(absolute)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}
