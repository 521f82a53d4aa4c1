package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
	Queue       QueueConfig   `toml:"queue"`
	Feeds       FeedsConfig   `toml:"feeds"`
	Browser     BrowserConfig `toml:"browser"`
	Quality     QualityConfig `toml:"quality"`
	LLM         LLMConfig     `toml:"llm"`
	Podcast     PodcastConfig `toml:"podcast"`
	Privacy     PrivacyConfig `toml:"privacy"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"required,min=1,max=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger      BadgerConfig `toml:"badger"`
	DataDir     string       `toml:"data_dir"`
	CookiesFile string       `toml:"cookies_file"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type QueueConfig struct {
	PollInterval string `toml:"poll_interval"` // e.g. "1s" - how often workers poll for jobs
}

type FeedsConfig struct {
	PollIntervalMinutes int    `toml:"poll_interval_minutes"`
	RSSURL              string `toml:"rss_url"`       // Source A: RSS feed with PDF enclosures
	LinkstashURL        string `toml:"linkstash_url"` // Source B: paginated JSON bookmark API, token in query
}

type BrowserConfig struct {
	UserAgent        string `toml:"user_agent"`
	Headless         bool   `toml:"headless"`
	NoSandbox        bool   `toml:"no_sandbox"`
	SocialMirrorHost string `toml:"social_mirror_host"`
}

type QualityConfig struct {
	Threshold int `toml:"threshold" validate:"min=0,max=100"`
}

type LLMConfig struct {
	VisionHost  string       `toml:"vision_host"`
	VisionModel string       `toml:"vision_model"`
	TextModel   string       `toml:"text_model"`
	Provider    string       `toml:"provider" validate:"omitempty,oneof=ollama claude"`
	Claude      ClaudeConfig `toml:"claude"`
}

type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

type PodcastConfig struct {
	ASRHost string `toml:"asr_host"`
}

type PrivacyConfig struct {
	FilterTerms []string `toml:"filter_terms"`
}

// LoadConfig loads configuration from a TOML file with environment overrides.
// A missing file is not an error; defaults plus environment apply.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Storage.CookiesFile == "" {
		cfg.Storage.CookiesFile = filepath.Join(cfg.Storage.DataDir, "cookies.txt")
	}
	if cfg.Storage.Badger.Path == "" {
		cfg.Storage.Badger.Path = filepath.Join(cfg.Storage.DataDir, "badger")
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if len(cfg.Logging.Output) == 0 {
		cfg.Logging.Output = []string{"stdout"}
	}
	if cfg.Queue.PollInterval == "" {
		cfg.Queue.PollInterval = "1s"
	}
	if cfg.Feeds.PollIntervalMinutes <= 0 {
		cfg.Feeds.PollIntervalMinutes = 15
	}
	if cfg.Browser.UserAgent == "" {
		cfg.Browser.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if cfg.Quality.Threshold == 0 {
		cfg.Quality.Threshold = 50
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.VisionHost == "" {
		cfg.LLM.VisionHost = "http://localhost:11434"
	}
	if cfg.LLM.VisionModel == "" {
		cfg.LLM.VisionModel = "llama3.2-vision"
	}
	if cfg.LLM.TextModel == "" {
		cfg.LLM.TextModel = "llama3.1"
	}
	if cfg.LLM.Claude.MaxTokens <= 0 {
		cfg.LLM.Claude.MaxTokens = 8192
	}
}

// applyEnvOverrides maps RECONDO_* environment variables onto the config.
// Environment always wins over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RECONDO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RECONDO_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("RECONDO_COOKIES_FILE"); v != "" {
		cfg.Storage.CookiesFile = v
	}
	if v := os.Getenv("RECONDO_BADGER_PATH"); v != "" {
		cfg.Storage.Badger.Path = v
	}
	if v := os.Getenv("RECONDO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RECONDO_QUALITY_THRESHOLD"); v != "" {
		if threshold, err := strconv.Atoi(v); err == nil {
			cfg.Quality.Threshold = threshold
		}
	}
	if v := os.Getenv("RECONDO_FEED_POLL_INTERVAL_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			cfg.Feeds.PollIntervalMinutes = minutes
		}
	}
	if v := os.Getenv("RECONDO_RSS_FEED_URL"); v != "" {
		cfg.Feeds.RSSURL = v
	}
	if v := os.Getenv("RECONDO_LINKSTASH_FEED_URL"); v != "" {
		cfg.Feeds.LinkstashURL = v
	}
	if v := os.Getenv("RECONDO_ASR_HOST"); v != "" {
		cfg.Podcast.ASRHost = v
	}
	if v := os.Getenv("RECONDO_SOCIAL_MIRROR_HOST"); v != "" {
		cfg.Browser.SocialMirrorHost = v
	}
	if v := os.Getenv("RECONDO_VISION_HOST"); v != "" {
		cfg.LLM.VisionHost = v
	}
	if v := os.Getenv("RECONDO_VISION_MODEL"); v != "" {
		cfg.LLM.VisionModel = v
	}
	if v := os.Getenv("RECONDO_TEXT_MODEL"); v != "" {
		cfg.LLM.TextModel = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.LLM.Claude.APIKey == "" {
		cfg.LLM.Claude.APIKey = v
	}
	if v := os.Getenv("RECONDO_PRIVACY_FILTER_TERMS"); v != "" {
		terms := []string{}
		for _, term := range strings.Split(v, ",") {
			if t := strings.TrimSpace(term); t != "" {
				terms = append(terms, t)
			}
		}
		cfg.Privacy.FilterTerms = terms
	}
}
