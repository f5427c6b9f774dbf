// Package urlutil provides URL normalization and site-membership helpers.
package urlutil

import (
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DefaultTrackingParams are query parameters that never change page content.
var DefaultTrackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"gclid", "fbclid", "msclkid", "mc_cid", "mc_eid",
}

var multiSlash = regexp.MustCompile(`/+`)

// Normalizer canonicalizes URLs so that one page has one crawl-graph key.
type Normalizer struct {
	// query parameters dropped during normalization, lowercased
	ignoreParams map[string]struct{}

	KeepTrailingSlash bool
	KeepFragment      bool
	KeepQueryOrder    bool
}

// NewNormalizer returns a normalizer that drops ignoreParams plus the default
// tracking parameters.
func NewNormalizer(ignoreParams ...string) *Normalizer {
	params := make(map[string]struct{}, len(DefaultTrackingParams)+len(ignoreParams))
	for _, p := range append(append([]string{}, DefaultTrackingParams...), ignoreParams...) {
		params[strings.ToLower(p)] = struct{}{}
	}
	return &Normalizer{ignoreParams: params}
}

// Normalize lowercases scheme and host, strips default ports, the fragment,
// tracking parameters and the trailing slash, and cleans the path.
func (n *Normalizer) Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	if !n.KeepFragment {
		u.Fragment = ""
		u.RawFragment = ""
	}

	path := cleanPath(u.Path)
	if !n.KeepTrailingSlash && len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	u.Path = path
	u.RawPath = ""

	if u.RawQuery != "" {
		kept := url.Values{}
		for key, values := range u.Query() {
			if _, drop := n.ignoreParams[strings.ToLower(key)]; drop {
				continue
			}
			kept[key] = values
		}
		if n.KeepQueryOrder {
			u.RawQuery = kept.Encode()
		} else {
			u.RawQuery = sortedQuery(kept)
		}
	}
	u.ForceQuery = false

	return u.String(), nil
}

// cleanPath collapses repeated slashes and resolves dot segments.
func cleanPath(path string) string {
	if path == "" {
		return "/"
	}
	trailing := strings.HasSuffix(path, "/")
	path = multiSlash.ReplaceAllString(path, "/")

	var out []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}

	cleaned := "/" + strings.Join(out, "/")
	if trailing && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

func sortedQuery(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for _, v := range values {
			if v == "" {
				parts = append(parts, url.QueryEscape(k))
				continue
			}
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

// Resolve resolves ref against base.
func Resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// IsHTTP reports whether rawURL is an absolute http or https URL.
func IsHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Host returns the lowercased hostname of rawURL without port or "www.".
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// RegistrableDomain returns the eTLD+1 of host ("shop.example.co.uk" gives
// "example.co.uk"). IP addresses and bare suffixes are returned unchanged.
func RegistrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// SameSite reports whether target belongs to the site of base. Hosts match
// ignoring a leading "www."; with allowSubdomains any host under the same
// registrable domain matches too.
func SameSite(base, target string, allowSubdomains bool) bool {
	bh, th := Host(base), Host(target)
	if bh == "" || th == "" {
		return false
	}
	if bh == th {
		return true
	}
	if !allowSubdomains {
		return false
	}
	return RegistrableDomain(bh) == RegistrableDomain(th)
}
