// Package config loads the .devscontext.yaml configuration file.
//
// Loading order: built-in defaults, then the config file (when present),
// then ${ENV_VAR} expansion for secret fields. A missing file yields the
// defaults, which enable only the credential-free demo and docs sources.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = ".devscontext.yaml"

// Config is the root configuration.
type Config struct {
	Sources      SourcesConfig      `mapstructure:"sources" yaml:"sources"`
	Synthesis    SynthesisConfig    `mapstructure:"synthesis" yaml:"synthesis"`
	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache"`
	Fetch        FetchConfig        `mapstructure:"fetch" yaml:"fetch"`
	Preprocessor PreprocessorConfig `mapstructure:"preprocessor" yaml:"preprocessor"`
	Storage      StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// SourcesConfig configures every adapter.
type SourcesConfig struct {
	Jira     JiraConfig     `mapstructure:"jira" yaml:"jira"`
	Meetings MeetingsConfig `mapstructure:"meetings" yaml:"meetings"`
	Chat     ChatConfig     `mapstructure:"chat" yaml:"chat"`
	Docs     DocsConfig     `mapstructure:"docs" yaml:"docs"`
	Demo     DemoConfig     `mapstructure:"demo" yaml:"demo"`
}

// JiraConfig configures the issue tracker adapter.
type JiraConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Primary  bool   `mapstructure:"primary" yaml:"primary"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Email    string `mapstructure:"email" yaml:"email"`
	APIToken string `mapstructure:"api_token" yaml:"api_token"`
	Project  string `mapstructure:"project" yaml:"project"`
}

// MeetingsConfig configures the meeting transcript adapter.
type MeetingsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	APIURL  string `mapstructure:"api_url" yaml:"api_url"`
}

// ChatConfig configures the team chat adapter.
type ChatConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	BotToken     string   `mapstructure:"bot_token" yaml:"bot_token"`
	APIURL       string   `mapstructure:"api_url" yaml:"api_url"`
	Channels     []string `mapstructure:"channels" yaml:"channels"`
	LookbackDays int      `mapstructure:"lookback_days" yaml:"lookback_days"`
	MaxMessages  int      `mapstructure:"max_messages" yaml:"max_messages"`
}

// DocsConfig configures the local documentation adapter.
type DocsConfig struct {
	Enabled       bool     `mapstructure:"enabled" yaml:"enabled"`
	Paths         []string `mapstructure:"paths" yaml:"paths"`
	StandardsPath string   `mapstructure:"standards_path" yaml:"standards_path"`
}

// DemoConfig enables the in-process demo adapter that serves canned data.
type DemoConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// SynthesisConfig selects and configures the synthesis engine.
type SynthesisConfig struct {
	// Engine is "llm" or "passthrough".
	Engine string `mapstructure:"engine" yaml:"engine"`
	// Provider is "anthropic", "openai", or "ollama" (engine=llm only).
	Provider        string `mapstructure:"provider" yaml:"provider"`
	Model           string `mapstructure:"model" yaml:"model"`
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
}

// CacheConfig tunes the in-memory synthesis cache.
type CacheConfig struct {
	TTLMinutes int `mapstructure:"ttl_minutes" yaml:"ttl_minutes"`
	MaxSize    int `mapstructure:"max_size" yaml:"max_size"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// FetchConfig tunes the fetch coordinator timeouts.
type FetchConfig struct {
	PerSourceTimeoutSeconds int `mapstructure:"per_source_timeout_seconds" yaml:"per_source_timeout_seconds"`
	OverallTimeoutSeconds   int `mapstructure:"overall_timeout_seconds" yaml:"overall_timeout_seconds"`
}

// PerSourceTimeout returns the per-adapter timeout as a duration.
func (c FetchConfig) PerSourceTimeout() time.Duration {
	return time.Duration(c.PerSourceTimeoutSeconds) * time.Second
}

// OverallTimeout returns the ceiling timeout as a duration.
func (c FetchConfig) OverallTimeout() time.Duration {
	return time.Duration(c.OverallTimeoutSeconds) * time.Second
}

// PreprocessorConfig configures the background watcher and pipeline.
type PreprocessorConfig struct {
	Enabled             bool     `mapstructure:"enabled" yaml:"enabled"`
	PollIntervalMinutes int      `mapstructure:"poll_interval_minutes" yaml:"poll_interval_minutes"`
	TriggerStatus       string   `mapstructure:"trigger_status" yaml:"trigger_status"`
	Projects            []string `mapstructure:"projects" yaml:"projects"`
	ContextTTLHours     int      `mapstructure:"context_ttl_hours" yaml:"context_ttl_hours"`
}

// PollInterval returns the watcher poll interval as a duration.
func (c PreprocessorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

// ContextTTL returns the prebuilt record TTL as a duration.
func (c PreprocessorConfig) ContextTTL() time.Duration {
	return time.Duration(c.ContextTTLHours) * time.Hour
}

// StorageConfig locates the shared prebuilt-context database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns the built-in defaults: demo and docs sources enabled,
// everything requiring credentials disabled.
func Default() *Config {
	return &Config{
		Sources: SourcesConfig{
			Jira:     JiraConfig{Primary: true},
			Meetings: MeetingsConfig{APIURL: "https://api.fireflies.ai/graphql"},
			Chat:     ChatConfig{LookbackDays: 30, MaxMessages: 20},
			Docs:     DocsConfig{Enabled: true, Paths: []string{"./docs"}},
			Demo:     DemoConfig{Enabled: true},
		},
		Synthesis: SynthesisConfig{
			Engine:          "passthrough",
			Provider:        "anthropic",
			Model:           "claude-haiku-4-5",
			MaxOutputTokens: 3000,
		},
		Cache: CacheConfig{TTLMinutes: 15, MaxSize: 100},
		Fetch: FetchConfig{
			PerSourceTimeoutSeconds: 30,
			OverallTimeoutSeconds:   60,
		},
		Preprocessor: PreprocessorConfig{
			PollIntervalMinutes: 5,
			TriggerStatus:       "Ready for Development",
			ContextTTLHours:     24,
		},
		Storage: StorageConfig{Path: filepath.Join(".devscontext", "cache.db")},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the configuration from dir/.devscontext.yaml. A missing
// file returns the defaults; a malformed file is an error.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".devscontext")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", FileName, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	expandSecrets(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("sources.jira.primary", d.Sources.Jira.Primary)
	v.SetDefault("sources.meetings.api_url", d.Sources.Meetings.APIURL)
	v.SetDefault("sources.chat.lookback_days", d.Sources.Chat.LookbackDays)
	v.SetDefault("sources.chat.max_messages", d.Sources.Chat.MaxMessages)
	v.SetDefault("sources.docs.enabled", d.Sources.Docs.Enabled)
	v.SetDefault("sources.docs.paths", d.Sources.Docs.Paths)
	v.SetDefault("sources.demo.enabled", d.Sources.Demo.Enabled)
	v.SetDefault("synthesis.engine", d.Synthesis.Engine)
	v.SetDefault("synthesis.provider", d.Synthesis.Provider)
	v.SetDefault("synthesis.model", d.Synthesis.Model)
	v.SetDefault("synthesis.max_output_tokens", d.Synthesis.MaxOutputTokens)
	v.SetDefault("cache.ttl_minutes", d.Cache.TTLMinutes)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("fetch.per_source_timeout_seconds", d.Fetch.PerSourceTimeoutSeconds)
	v.SetDefault("fetch.overall_timeout_seconds", d.Fetch.OverallTimeoutSeconds)
	v.SetDefault("preprocessor.poll_interval_minutes", d.Preprocessor.PollIntervalMinutes)
	v.SetDefault("preprocessor.trigger_status", d.Preprocessor.TriggerStatus)
	v.SetDefault("preprocessor.context_ttl_hours", d.Preprocessor.ContextTTLHours)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("logging.level", d.Logging.Level)
}

// expandSecrets applies ${ENV_VAR} expansion to secret-bearing fields so
// tokens never have to live in the YAML file itself.
func expandSecrets(cfg *Config) {
	cfg.Sources.Jira.APIToken = os.ExpandEnv(cfg.Sources.Jira.APIToken)
	cfg.Sources.Jira.Email = os.ExpandEnv(cfg.Sources.Jira.Email)
	cfg.Sources.Meetings.APIKey = os.ExpandEnv(cfg.Sources.Meetings.APIKey)
	cfg.Sources.Chat.BotToken = os.ExpandEnv(cfg.Sources.Chat.BotToken)
	cfg.Synthesis.APIKey = os.ExpandEnv(cfg.Synthesis.APIKey)
}

// WriteExample writes a commented starter config to path, refusing to
// overwrite an existing file.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}

	cfg := Default()
	cfg.Sources.Jira.BaseURL = "https://your-org.atlassian.net"
	cfg.Sources.Jira.Email = "${JIRA_EMAIL}"
	cfg.Sources.Jira.APIToken = "${JIRA_API_TOKEN}"
	cfg.Sources.Jira.Project = "PROJ"
	cfg.Sources.Meetings.APIKey = "${FIREFLIES_API_KEY}"
	cfg.Sources.Chat.BotToken = "${SLACK_BOT_TOKEN}"
	cfg.Synthesis.APIKey = "${ANTHROPIC_API_KEY}"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal example: %w", err)
	}

	header := []byte("# devscontext configuration.\n# Secrets use ${ENV_VAR} expansion; export them before running.\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
