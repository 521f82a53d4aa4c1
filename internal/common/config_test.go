package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RECONDO_PORT", "8080")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join("./data", "cookies.txt"), cfg.Storage.CookiesFile)
	assert.Equal(t, 50, cfg.Quality.Threshold)
	assert.Equal(t, 15, cfg.Feeds.PollIntervalMinutes)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.NotEmpty(t, cfg.Browser.UserAgent)
}

func TestLoadConfigFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recondo.toml")
	content := `
[server]
port = 9000

[storage]
data_dir = "/var/lib/recondo"

[quality]
threshold = 70

[feeds]
poll_interval_minutes = 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("RECONDO_QUALITY_THRESHOLD", "40")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/var/lib/recondo", cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join("/var/lib/recondo", "cookies.txt"), cfg.Storage.CookiesFile)
	assert.Equal(t, 40, cfg.Quality.Threshold, "environment wins over file")
	assert.Equal(t, 30, cfg.Feeds.PollIntervalMinutes)
}

func TestLoadConfigRejectsInvalidPort(t *testing.T) {
	t.Setenv("RECONDO_PORT", "0")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigPrivacyTermsFromEnv(t *testing.T) {
	t.Setenv("RECONDO_PORT", "8080")
	t.Setenv("RECONDO_PRIVACY_FILTER_TERMS", "alice, bob ,,carol")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, cfg.Privacy.FilterTerms)
}
