package browser

import (
	"net/url"
	"strings"
)

// Pre-navigation URL rewrites, applied in order:
//  1. strip the publisher platform's tracking query parameters
//  2. unwrap the chart-embed wrapper to its CDN embed form
//  3. send the recognized social-media domain to the configured mirror
type rewriter struct {
	socialMirrorHost string
}

type rewriteResult struct {
	URL       string
	Rewritten bool
	IsSocial  bool
}

// substackTrackingParams are dropped from substack post URLs before capture
var substackTrackingParams = map[string]bool{
	"publication_id": true,
	"post_id":        true,
	"isFreemail":     true,
	"r":              true,
	"triedRedirect":  true,
}

func (r *rewriter) apply(rawURL string) rewriteResult {
	result := rewriteResult{URL: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return result
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")

	// 1. Publisher platform tracking parameters
	if strings.HasSuffix(host, "substack.com") && u.RawQuery != "" {
		query := u.Query()
		changed := false
		for key := range query {
			if substackTrackingParams[key] || strings.HasPrefix(key, "utm_") {
				query.Del(key)
				changed = true
			}
		}
		if changed {
			u.RawQuery = query.Encode()
			result.URL = u.String()
			result.Rewritten = true
		}
	}

	// 2. Chart-embed wrapper to CDN embed form
	if host == "datawrapper.dwcdn.net" || host == "datawrapper.de" {
		if chartID := chartIDFromPath(u.Path); chartID != "" {
			result.URL = "https://datawrapper.dwcdn.net/" + chartID + "/full.png"
			result.Rewritten = true
		}
	}

	// 3. Social mirror
	if isSocialDomain(host) {
		result.IsSocial = true
		if r.socialMirrorHost != "" {
			u.Host = r.socialMirrorHost
			u.Scheme = "https"
			result.URL = u.String()
			result.Rewritten = true
		}
	}

	return result
}

func chartIDFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return ""
	}
	return segments[0]
}

func isSocialDomain(host string) bool {
	return host == "twitter.com" || host == "x.com"
}

// articleStubMarker appears in mirror content when the instance cannot render
// an external article link embedded in a post
const articleStubMarker = "/article/"
