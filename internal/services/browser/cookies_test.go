package browser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const sampleCookies = `# Netscape HTTP Cookie File
# This is a comment
.example.com	TRUE	/	TRUE	1999999999	session	abc123
news.example.com	FALSE	/reader	FALSE	0	pref	dark
bad line with too few fields
`

func TestParseCookieLine(t *testing.T) {
	cookie, ok := ParseCookieLine(".example.com\tTRUE\t/\tTRUE\t1999999999\tsession\tabc123")
	require.True(t, ok)
	assert.Equal(t, ".example.com", cookie.Domain, "leading dot must be preserved")
	assert.True(t, cookie.IncludeSubdomains)
	assert.True(t, cookie.Secure)
	assert.Equal(t, int64(1999999999), cookie.Expires)
	assert.Equal(t, "session", cookie.Name)
	assert.Equal(t, "abc123", cookie.Value)

	_, ok = ParseCookieLine("# comment")
	assert.False(t, ok)
	_, ok = ParseCookieLine("")
	assert.False(t, ok)
	_, ok = ParseCookieLine("a\tb\tc")
	assert.False(t, ok)
}

func TestCookieFileLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleCookies), 0644))

	store := NewCookieFile(path, arbor.NewLogger())
	require.NoError(t, store.ReloadIfChanged())

	cookies := store.Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "pref", cookies[1].Name)

	// Rewrite with a newer mtime picks up changes
	updated := ".example.com\tTRUE\t/\tTRUE\t1999999999\tsession\tupdated\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.NoError(t, store.ReloadIfChanged())
	cookies = store.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "updated", cookies[0].Value)
}

func TestCookieFileMissingIsEmpty(t *testing.T) {
	store := NewCookieFile(filepath.Join(t.TempDir(), "absent.txt"), arbor.NewLogger())
	require.NoError(t, store.ReloadIfChanged())
	assert.Empty(t, store.Cookies())
}

func TestCookieRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleCookies), 0644))

	store := NewCookieFile(path, arbor.NewLogger())
	require.NoError(t, store.ReloadIfChanged())
	original := store.Cookies()

	serialized := SerializeCookies(original)
	reparsedPath := filepath.Join(dir, "roundtrip.txt")
	require.NoError(t, os.WriteFile(reparsedPath, []byte(serialized), 0644))

	store2 := NewCookieFile(reparsedPath, arbor.NewLogger())
	require.NoError(t, store2.ReloadIfChanged())
	assert.Equal(t, original, store2.Cookies())
}

func TestValidateCookieContent(t *testing.T) {
	assert.True(t, ValidateCookieContent(sampleCookies))
	assert.False(t, ValidateCookieContent("# only comments\n# here\n"))
	assert.False(t, ValidateCookieContent(""))
	assert.False(t, ValidateCookieContent("too\tfew\tfields\n"))
}
