package feeds

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var utmParamPattern = regexp.MustCompile(`(?i)^utm_\w+`)

// trackingParams are removed from every canonicalized URL
var trackingParams = map[string]bool{
	"ref":     true,
	"source":  true,
	"fbclid":  true,
	"gclid":   true,
	"msclkid": true,
}

// Canonicalize normalizes a URL into its dedup identity: no www. subdomain,
// no fragment or text fragment, no trailing slash, tracking parameters
// removed, remaining query parameters sorted. The function is idempotent;
// unparseable input comes back unchanged.
func Canonicalize(rawURL string) string {
	// Text fragments (#:~:text=...) confuse url.Parse less than they
	// confuse downstream consumers; drop everything from the fragment on.
	if idx := strings.Index(rawURL, "#"); idx >= 0 {
		rawURL = rawURL[:idx]
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	u.Fragment = ""
	u.Host = strings.TrimPrefix(u.Host, "www.")

	// Remove tracking parameters, sort the rest
	if u.RawQuery != "" {
		query := u.Query()
		keys := make([]string, 0, len(query))
		for key := range query {
			if utmParamPattern.MatchString(key) || trackingParams[strings.ToLower(key)] {
				query.Del(key)
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var builder strings.Builder
		for _, key := range keys {
			for _, value := range query[key] {
				if builder.Len() > 0 {
					builder.WriteByte('&')
				}
				builder.WriteString(url.QueryEscape(key))
				builder.WriteByte('=')
				builder.WriteString(url.QueryEscape(value))
			}
		}
		u.RawQuery = builder.String()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}
