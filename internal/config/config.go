// Package config loads the flat option set from command-line flags,
// environment variables, and an optional YAML file. Flags and environment
// take precedence over the file; the file overrides built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// ErrHelp is returned when the user asked for usage output; the caller
// should exit cleanly without treating it as a failure.
var ErrHelp = errors.New("config: help requested")

// Config is the complete option set.
type Config struct {
	ArchiveDir string `long:"archive-dir" env:"YTARCHIVE_DIR" default:"./archive" description:"Archive root directory"`
	ConfigFile string `long:"config" env:"YTARCHIVE_CONFIG" description:"Optional YAML configuration file"`

	ChannelID     string `long:"channel-id" env:"YTARCHIVE_CHANNEL_ID" description:"YouTube channel id to archive (required)"`
	YouTubeAPIKey string `long:"youtube-api-key" env:"YOUTUBE_API_KEY" description:"YouTube Data API v3 key (required)"`
	OpenAIAPIKey  string `long:"openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI API key (required)"`
	OpenAIModel   string `long:"openai-model" env:"OPENAI_MODEL" default:"gpt-4o-mini" description:"Chat-completions model for derivation"`

	CheckTime       string `long:"check-time" env:"YTARCHIVE_CHECK_TIME" default:"00:00" description:"Daily check time for daemon mode (HH:MM, 24h)"`
	Quality         string `long:"quality" env:"YTARCHIVE_QUALITY" default:"best" description:"Preferred media quality (yt-dlp format selector)"`
	MaxConcurrent   int    `long:"max-concurrent" env:"YTARCHIVE_MAX_CONCURRENT" default:"3" description:"Maximum videos processed in parallel"`
	RSSPrecheck     bool   `long:"rss-precheck" env:"YTARCHIVE_RSS_PRECHECK" description:"Probe the channel RSS feed before the full API listing"`
	YtdlpPath       string `long:"ytdlp-path" env:"YTARCHIVE_YTDLP_PATH" default:"yt-dlp" description:"Path to the yt-dlp executable"`
	DownloadTimeout int    `long:"download-timeout" env:"YTARCHIVE_DOWNLOAD_TIMEOUT" default:"600" description:"Per-download timeout in seconds"`

	Debug bool `long:"debug" env:"YTARCHIVE_DEBUG" description:"Enable debug logging"`
}

// fileConfig mirrors the YAML file shape. Pointer fields distinguish
// "absent" from zero values.
type fileConfig struct {
	ArchiveDir      *string `yaml:"archive_dir"`
	ChannelID       *string `yaml:"channel_id"`
	YouTubeAPIKey   *string `yaml:"youtube_api_key"`
	OpenAIAPIKey    *string `yaml:"openai_api_key"`
	OpenAIModel     *string `yaml:"openai_model"`
	CheckTime       *string `yaml:"check_time"`
	Quality         *string `yaml:"quality"`
	MaxConcurrent   *int    `yaml:"max_concurrent"`
	RSSPrecheck     *bool   `yaml:"rss_precheck"`
	YtdlpPath       *string `yaml:"ytdlp_path"`
	DownloadTimeout *int    `yaml:"download_timeout"`
	Debug           *bool   `yaml:"debug"`
}

// Load parses args (excluding the program name) and returns the config plus
// the remaining positional arguments (the subcommand and its operands).
func Load(args []string) (*Config, []string, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.Usage = "[OPTIONS] <check|refresh|backfill|daemon|status>"

	rest, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil, ErrHelp
		}
		return nil, nil, fmt.Errorf("config: parse: %w", err)
	}

	if cfg.ConfigFile != "" {
		if err := cfg.mergeFile(parser, cfg.ConfigFile); err != nil {
			return nil, nil, err
		}
	}
	return &cfg, rest, nil
}

// mergeFile applies YAML values for every option the command line and
// environment left at its built-in default.
func (c *Config) mergeFile(parser *flags.Parser, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	defaulted := func(long string) bool {
		opt := parser.FindOptionByLongName(long)
		return opt == nil || !opt.IsSet() || opt.IsSetDefault()
	}

	if fc.ArchiveDir != nil && defaulted("archive-dir") {
		c.ArchiveDir = *fc.ArchiveDir
	}
	if fc.ChannelID != nil && defaulted("channel-id") {
		c.ChannelID = *fc.ChannelID
	}
	if fc.YouTubeAPIKey != nil && defaulted("youtube-api-key") {
		c.YouTubeAPIKey = *fc.YouTubeAPIKey
	}
	if fc.OpenAIAPIKey != nil && defaulted("openai-api-key") {
		c.OpenAIAPIKey = *fc.OpenAIAPIKey
	}
	if fc.OpenAIModel != nil && defaulted("openai-model") {
		c.OpenAIModel = *fc.OpenAIModel
	}
	if fc.CheckTime != nil && defaulted("check-time") {
		c.CheckTime = *fc.CheckTime
	}
	if fc.Quality != nil && defaulted("quality") {
		c.Quality = *fc.Quality
	}
	if fc.MaxConcurrent != nil && defaulted("max-concurrent") {
		c.MaxConcurrent = *fc.MaxConcurrent
	}
	if fc.RSSPrecheck != nil && defaulted("rss-precheck") {
		c.RSSPrecheck = *fc.RSSPrecheck
	}
	if fc.YtdlpPath != nil && defaulted("ytdlp-path") {
		c.YtdlpPath = *fc.YtdlpPath
	}
	if fc.DownloadTimeout != nil && defaulted("download-timeout") {
		c.DownloadTimeout = *fc.DownloadTimeout
	}
	if fc.Debug != nil && defaulted("debug") {
		c.Debug = *fc.Debug
	}
	return nil
}

// Validate fails fast on missing credentials or malformed values, before
// any network or file activity.
func (c *Config) Validate() error {
	if c.ChannelID == "" {
		return errors.New("config: channel id is required")
	}
	if c.YouTubeAPIKey == "" {
		return errors.New("config: youtube api key is required")
	}
	if c.OpenAIAPIKey == "" {
		return errors.New("config: openai api key is required")
	}
	if _, err := time.Parse("15:04", c.CheckTime); err != nil {
		return fmt.Errorf("config: invalid check time %q (want HH:MM)", c.CheckTime)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("config: max concurrency must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.DownloadTimeout < 1 {
		return fmt.Errorf("config: download timeout must be positive, got %d", c.DownloadTimeout)
	}
	return nil
}
