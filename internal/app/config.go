package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "imgseekbot/core/config"
	coredatabase "imgseekbot/core/database"
	"imgseekbot/internal/command"
	"imgseekbot/internal/search"
)

const defaultSearchTimeoutSeconds = 60

// SearchConfig holds the settings of the reverse-image-search flow.
type SearchConfig struct {
	// Endpoint is the base URL of the search backend.
	Endpoint string `yaml:"endpoint" envconfig:"SEARCH_ENDPOINT"`
	Token    string `yaml:"token" envconfig:"SEARCH_TOKEN"`
	// TimeoutSeconds bounds one backend search call; 0 -> default.
	TimeoutSeconds int `yaml:"timeout_seconds" envconfig:"SEARCH_TIMEOUT_SECONDS"`
	// TriggerKeyword overrides the chat trigger; empty -> default.
	TriggerKeyword string `yaml:"trigger_keyword" envconfig:"SEARCH_TRIGGER_KEYWORD"`
	// DisabledEngines lists engines to hide from users.
	DisabledEngines []string `yaml:"disabled_engines" envconfig:"SEARCH_DISABLED_ENGINES"`
	// FontPath points at a TTF with CJK glyphs used on result cards.
	FontPath string `yaml:"font_path" envconfig:"SEARCH_FONT_PATH"`
}

// Config aggregates core, database, and search configuration.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Search   SearchConfig        `yaml:"search"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// LoadConfig reads configuration from a YAML file and environment variables.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := normalizeSearch(&cfg.Search); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalizeSearch(cfg *SearchConfig) error {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("search.endpoint is required")
	}
	if cfg.TimeoutSeconds < 0 {
		return fmt.Errorf("search.timeout_seconds must be >= 0")
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = defaultSearchTimeoutSeconds
	}
	if strings.TrimSpace(cfg.TriggerKeyword) == "" {
		cfg.TriggerKeyword = command.DefaultKeyword
	}
	return nil
}

// clientOptions translates the search section into backend client options.
func (c *SearchConfig) clientOptions() search.ClientOptions {
	return search.ClientOptions{
		Endpoint: c.Endpoint,
		Token:    c.Token,
		Timeout:  time.Duration(c.TimeoutSeconds) * time.Second,
	}
}
