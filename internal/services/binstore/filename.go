package binstore

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
)

// nonDescriptivePathTokens are URL paths that make useless filenames; when a
// title is available it takes over instead.
var nonDescriptivePathTokens = map[string]bool{
	"item":     true,
	"comments": true,
	"post":     true,
	"p":        true,
	"a":        true,
	"article":  true,
	"story":    true,
	"s":        true,
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

const maxBaseNameLen = 100

// baseNameFromURL derives a filename base from a URL, substituting a
// slugified title when the path alone says nothing. For the recognized
// social-media domain the "status" path segment is renamed to reflect
// whether the capture fell back to the direct article.
func baseNameFromURL(rawURL, title string, directArticle bool) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return sanitizeFilename(rawURL)
	}

	host := strings.TrimPrefix(u.Host, "www.")
	path := strings.Trim(u.Path, "/")

	segments := strings.Split(path, "/")
	lastSegment := segments[len(segments)-1]
	if path == "" || (nonDescriptivePathTokens[strings.ToLower(lastSegment)] && title != "") {
		if title != "" {
			titleSlug := slugifyTitle(title)
			if titleSlug != "" {
				return sanitizeFilename(host + "-" + titleSlug)
			}
		}
	}

	base := host
	if path != "" {
		base += "-" + strings.ReplaceAll(path, "/", "-")
	}

	if isSocialHost(host) {
		replacement := "post"
		if directArticle {
			replacement = "article"
		}
		base = strings.ReplaceAll(base, "-status-", "-"+replacement+"-")
	}

	return sanitizeFilename(base)
}

// slugifyTitle lowercases, strips apostrophes, drops non-alphanumerics, and
// truncates to 50 characters
func slugifyTitle(title string) string {
	title = strings.ReplaceAll(title, "'", "")
	title = strings.ReplaceAll(title, "’", "")
	s := slug.Make(title)
	if len(s) > 50 {
		s = strings.Trim(s[:50], "-")
	}
	return s
}

// sanitizeFilename removes path-unsafe characters and truncates
func sanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-. ")
	if len(name) > maxBaseNameLen {
		name = strings.Trim(name[:maxBaseNameLen], "-. ")
	}
	if name == "" {
		name = "unnamed"
	}
	return name
}

func isSocialHost(host string) bool {
	return host == "twitter.com" || host == "x.com"
}
