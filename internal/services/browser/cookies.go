package browser

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

// CookieFile caches cookies parsed from a Netscape-format cookies.txt and
// reloads them when the file's modification time changes. A missing file is
// not an error; captures simply run without cookies.
type CookieFile struct {
	path    string
	logger  arbor.ILogger
	mu      sync.Mutex
	cookies []models.Cookie
	mtime   time.Time
	loaded  bool
}

// Compile-time assertion
var _ interfaces.CookieStore = (*CookieFile)(nil)

// NewCookieFile creates a cookie store backed by the given file
func NewCookieFile(path string, logger arbor.ILogger) *CookieFile {
	return &CookieFile{
		path:   path,
		logger: logger,
	}
}

// Cookies returns the cached cookie set
func (c *CookieFile) Cookies() []models.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Cookie, len(c.cookies))
	copy(out, c.cookies)
	return out
}

// ReloadIfChanged re-parses the file when its mtime moved
func (c *CookieFile) ReloadIfChanged() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.cookies = nil
			c.loaded = true
			return nil
		}
		return err
	}

	if c.loaded && info.ModTime().Equal(c.mtime) {
		return nil
	}

	cookies, err := parseCookieFile(c.path)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("Failed to parse cookies file")
		return err
	}

	c.cookies = cookies
	c.mtime = info.ModTime()
	c.loaded = true

	c.logger.Debug().
		Int("cookies", len(cookies)).
		Str("path", c.path).
		Msg("Cookie file loaded")
	return nil
}

// parseCookieFile reads a Netscape cookies.txt: tab-separated
// domain, include_subdomains, path, secure, expiration, name, value.
// Comment lines start with '#'; lines with fewer than 7 fields are skipped.
func parseCookieFile(path string) ([]models.Cookie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cookies []models.Cookie
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		cookie, ok := ParseCookieLine(scanner.Text())
		if !ok {
			continue
		}
		cookies = append(cookies, cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}

// ParseCookieLine parses one cookies.txt line. The leading dot on the domain
// is preserved: it carries the include-subdomains semantics on the wire.
func ParseCookieLine(line string) (models.Cookie, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return models.Cookie{}, false
	}

	fields := strings.Split(line, "\t")
	if len(fields) < 7 {
		return models.Cookie{}, false
	}

	expires, _ := strconv.ParseInt(fields[4], 10, 64)

	return models.Cookie{
		Domain:            fields[0],
		IncludeSubdomains: strings.EqualFold(fields[1], "TRUE"),
		Path:              fields[2],
		Secure:            strings.EqualFold(fields[3], "TRUE"),
		Expires:           expires,
		Name:              fields[5],
		Value:             strings.Join(fields[6:], "\t"),
	}, true
}

// SerializeCookies renders cookies back into the Netscape format
func SerializeCookies(cookies []models.Cookie) string {
	var builder strings.Builder
	builder.WriteString("# Netscape HTTP Cookie File\n")
	for _, c := range cookies {
		include := "FALSE"
		if c.IncludeSubdomains {
			include = "TRUE"
		}
		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}
		builder.WriteString(strings.Join([]string{
			c.Domain, include, c.Path, secure,
			strconv.FormatInt(c.Expires, 10), c.Name, c.Value,
		}, "\t"))
		builder.WriteByte('\n')
	}
	return builder.String()
}

// ValidateCookieContent checks uploaded cookies.txt content: at least one
// non-comment line with at least 7 tab-separated fields.
func ValidateCookieContent(content string) bool {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		if _, ok := ParseCookieLine(scanner.Text()); ok {
			return true
		}
	}
	return false
}
