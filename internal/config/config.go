package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/utils"
)

// Config holds all configuration settings.
type Config struct {
	// ListenAddress is the TCP address the HTTP server binds to.
	ListenAddress string `mapstructure:"listen_address"`
	// StagingDir is the directory where downloads are staged before being sent to the client.
	StagingDir string `mapstructure:"staging_dir"`
	// StaticDir is an optional directory with frontend assets served for unknown GET paths.
	StaticDir string `mapstructure:"static_dir"`
	// LogLevel specifies the logging verbosity level.
	LogLevel string `mapstructure:"log_level"`
	// CookiesFile is a Netscape cookie file passed to yt-dlp when it exists on disk.
	CookiesFile string `mapstructure:"cookies_file"`
	// UserAgent is the User-Agent sent by yt-dlp and by outgoing HTTP requests.
	UserAgent string `mapstructure:"user_agent"`
	// DownloadSpeedLimit sets the maximum download speed (e.g., "1MB", "500KB"). Empty or "0" disables it.
	DownloadSpeedLimit string `mapstructure:"download_speed_limit"`
	// ConvertAudioToMP3 makes audio-only downloads extract audio to MP3.
	ConvertAudioToMP3 bool `mapstructure:"convert_audio_to_mp3"`
	// EmbedAudioTags writes ID3 tags (title, artist, cover) into MP3 downloads.
	EmbedAudioTags bool `mapstructure:"embed_audio_tags"`
	// MaxConcurrentDownloads caps simultaneous downloads. Zero means unlimited.
	MaxConcurrentDownloads int64 `mapstructure:"max_concurrent_downloads"`
	// InfoTimeout bounds a metadata extraction (e.g., "60s").
	InfoTimeout string `mapstructure:"info_timeout"`
	// DownloadTimeout bounds a single download (e.g., "30m").
	DownloadTimeout string `mapstructure:"download_timeout"`
	// ShutdownTimeout bounds graceful HTTP server shutdown.
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
	// StagingMaxAge is the age after which leftover staging entries are swept.
	StagingMaxAge string `mapstructure:"staging_max_age"`
	// StagingSweepInterval is the period between stale staging sweeps.
	StagingSweepInterval string `mapstructure:"staging_sweep_interval"`
	// InfoCacheSize is the number of metadata responses kept in memory. Zero disables the cache.
	InfoCacheSize int64 `mapstructure:"info_cache_size"`
	// InfoCacheTTL is how long a cached metadata response stays valid.
	InfoCacheTTL string `mapstructure:"info_cache_ttl"`
	// SanitizeErrors strips server-side paths from error messages returned to clients.
	SanitizeErrors bool `mapstructure:"sanitize_errors"`
	// InstallYTDLP downloads a yt-dlp binary at startup if none is available.
	InstallYTDLP bool `mapstructure:"install_ytdlp"`
	// CORSAllowedOrigins lists origins allowed to call the API. "*" allows any origin.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	// CookiesLoginURL is the page opened by "cookies login".
	CookiesLoginURL string `mapstructure:"cookies_login_url"`
	// CookiesSessionNames are cookie names whose presence marks a completed login.
	CookiesSessionNames []string `mapstructure:"cookies_session_names"`
	// ParsedLogLevel is the parsed zap log level.
	ParsedLogLevel zapcore.Level
	// ParsedDownloadSpeedLimit is the parsed download speed limit in bytes per second.
	ParsedDownloadSpeedLimit int64
	// ParsedInfoTimeout is the parsed metadata extraction timeout.
	ParsedInfoTimeout time.Duration
	// ParsedDownloadTimeout is the parsed download timeout.
	ParsedDownloadTimeout time.Duration
	// ParsedShutdownTimeout is the parsed shutdown timeout.
	ParsedShutdownTimeout time.Duration
	// ParsedStagingMaxAge is the parsed staging max age.
	ParsedStagingMaxAge time.Duration
	// ParsedStagingSweepInterval is the parsed staging sweep interval.
	ParsedStagingSweepInterval time.Duration
	// ParsedInfoCacheTTL is the parsed metadata cache TTL.
	ParsedInfoCacheTTL time.Duration
}

const (
	// DefaultConfigFilename is the default name of the configuration file.
	DefaultConfigFilename = ".media-grabber.yaml"

	// DefaultListenAddress is the default HTTP listen address.
	DefaultListenAddress = ":8000"

	// DefaultStagingDir is the default staging directory, relative to the working directory.
	DefaultStagingDir = "downloads"

	// DefaultCookiesFile is the default cookie file path.
	DefaultCookiesFile = "cookies.txt"

	// DefaultCookiesLoginURL is the default page opened by the cookies login command.
	DefaultCookiesLoginURL = "https://www.youtube.com/"

	// DefaultMaxLogLength is the default maximum size (in bytes) for logged HTTP dumps.
	DefaultMaxLogLength = 1 * 1024 * 1024 // 1 MB

	// envPrefix prefixes environment variable overrides, e.g. MEDIA_GRABBER_LISTEN_ADDRESS.
	envPrefix = "MEDIA_GRABBER"

	// legacyStagingDirEnv is the environment variable historically used for the staging directory.
	legacyStagingDirEnv = "DOWNLOAD_DIR"

	// legacyDebugEnv forces debug logging when set to "True".
	legacyDebugEnv = "DEBUG"

	// cookiesFileKey is the configuration key updated by SaveConfig.
	cookiesFileKey = "cookies_file"
)

// Static error definitions for better error handling.
var (
	// ErrEmptyListenAddress indicates that the listen address is missing.
	ErrEmptyListenAddress = errors.New("listen address cannot be empty")
	// ErrEmptyStagingDir indicates that the staging directory is missing.
	ErrEmptyStagingDir = errors.New("staging directory cannot be empty")
	// ErrUnknownLogLevel indicates that the log level is not recognized.
	ErrUnknownLogLevel = errors.New("unknown log level")
	// ErrInvalidConcurrentDownloads indicates that the concurrent downloads count is invalid.
	ErrInvalidConcurrentDownloads = errors.New("max concurrent downloads cannot be negative")
	// ErrInvalidInfoCacheSize indicates that the info cache size is invalid.
	ErrInvalidInfoCacheSize = errors.New("info cache size cannot be negative")
	// ErrNonPositiveDuration indicates that a duration setting is zero or negative.
	ErrNonPositiveDuration = errors.New("duration must be positive")
	// ErrEmptySessionCookieNames indicates that no session cookie names are configured.
	ErrEmptySessionCookieNames = errors.New("cookies session names cannot be empty")
)

// LoadConfig loads configuration from the optional YAML file, a .env file and environment variables.
// A missing default file is not an error; a missing explicitly requested file is.
func LoadConfig(configFilename string) (*Config, error) {
	// A missing .env file is expected outside of local development.
	_ = godotenv.Load()

	viper.Reset()
	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("staging_dir", envPrefix+"_STAGING_DIR", legacyStagingDirEnv); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	isExplicit := configFilename != ""
	if !isExplicit {
		configFilename = DefaultConfigFilename
	}

	viper.SetConfigFile(configFilename)

	if err := viper.ReadInConfig(); err != nil {
		if isExplicit || !isMissingFile(configFilename) {
			return nil, fmt.Errorf("failed to read config from file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv(legacyDebugEnv) == "True" {
		cfg.LogLevel = "debug"
	}

	return &cfg, nil
}

// ValidateConfig checks the configuration for validity and sets derived fields.
//
//nolint:funlen,cyclop // Validation functions naturally have high complexity and length due to sequential checks.
func ValidateConfig(cfg *Config) error {
	var err error

	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		return ErrEmptyListenAddress
	}

	cfg.StagingDir = strings.TrimSpace(cfg.StagingDir)
	if cfg.StagingDir == "" {
		return ErrEmptyStagingDir
	}

	parsedLogLevel, isLogLevelCorrect := logger.ParseLogLevel(cfg.LogLevel)
	if !isLogLevelCorrect {
		return fmt.Errorf("%w: '%s'", ErrUnknownLogLevel, cfg.LogLevel)
	}

	cfg.ParsedLogLevel = parsedLogLevel

	var parsedDownloadSpeedLimit uint64

	downloadSpeedLimit := strings.TrimSpace(cfg.DownloadSpeedLimit)
	if downloadSpeedLimit != "" && downloadSpeedLimit != "0" {
		parsedDownloadSpeedLimit, err = humanize.ParseBytes(downloadSpeedLimit)
		if err != nil {
			return fmt.Errorf("failed to parse download speed limit: %w", err)
		}
	}

	cfg.ParsedDownloadSpeedLimit = utils.SafeUint64ToInt64(parsedDownloadSpeedLimit)

	if cfg.MaxConcurrentDownloads < 0 {
		return ErrInvalidConcurrentDownloads
	}

	if cfg.InfoCacheSize < 0 {
		return ErrInvalidInfoCacheSize
	}

	durations := []struct {
		name   string
		value  string
		target *time.Duration
	}{
		{"info_timeout", cfg.InfoTimeout, &cfg.ParsedInfoTimeout},
		{"download_timeout", cfg.DownloadTimeout, &cfg.ParsedDownloadTimeout},
		{"shutdown_timeout", cfg.ShutdownTimeout, &cfg.ParsedShutdownTimeout},
		{"staging_max_age", cfg.StagingMaxAge, &cfg.ParsedStagingMaxAge},
		{"staging_sweep_interval", cfg.StagingSweepInterval, &cfg.ParsedStagingSweepInterval},
		{"info_cache_ttl", cfg.InfoCacheTTL, &cfg.ParsedInfoCacheTTL},
	}

	for _, d := range durations {
		*d.target, err = parsePositiveDuration(d.name, d.value)
		if err != nil {
			return err
		}
	}

	if len(cfg.CookiesSessionNames) == 0 {
		return ErrEmptySessionCookieNames
	}

	return nil
}

// SaveConfig records the cookie file path in the configuration file while preserving its format and order.
func SaveConfig(cfg *Config) error {
	configFile := getConfigFilePath()

	// Read the original file content.
	originalContent, err := os.ReadFile(configFile)
	if err != nil {
		return handleMissingConfigFile(configFile, cfg.CookiesFile, err)
	}

	// Parse YAML while preserving order using yaml.Node.
	var node yaml.Node
	if err = yaml.Unmarshal(originalContent, &node); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	updateKeyInNode(&node, cookiesFileKey, cfg.CookiesFile)

	// Marshal back to YAML (preserves order).
	newContent, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err = os.WriteFile(configFile, newContent, constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("listen_address", DefaultListenAddress)
	viper.SetDefault("staging_dir", DefaultStagingDir)
	viper.SetDefault("static_dir", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault(cookiesFileKey, DefaultCookiesFile)
	viper.SetDefault("user_agent", "")
	viper.SetDefault("download_speed_limit", "")
	viper.SetDefault("convert_audio_to_mp3", true)
	viper.SetDefault("embed_audio_tags", true)
	viper.SetDefault("max_concurrent_downloads", 0)
	viper.SetDefault("info_timeout", "60s")
	viper.SetDefault("download_timeout", "30m")
	viper.SetDefault("shutdown_timeout", "15s")
	viper.SetDefault("staging_max_age", "2h")
	viper.SetDefault("staging_sweep_interval", "15m")
	viper.SetDefault("info_cache_size", 256)
	viper.SetDefault("info_cache_ttl", "10m")
	viper.SetDefault("sanitize_errors", false)
	viper.SetDefault("install_ytdlp", false)
	viper.SetDefault("cors_allowed_origins", []string{"*"})
	viper.SetDefault("cookies_login_url", DefaultCookiesLoginURL)
	viper.SetDefault("cookies_session_names", []string{"SAPISID", "LOGIN_INFO"})
}

func parsePositiveDuration(name, value string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrNonPositiveDuration, name)
	}

	return parsed, nil
}

func isMissingFile(path string) bool {
	_, err := os.Stat(path)

	return os.IsNotExist(err)
}

// getConfigFilePath returns the config file path from viper or the default.
func getConfigFilePath() string {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		return DefaultConfigFilename
	}

	return configFile
}

// handleMissingConfigFile creates a new config file if it doesn't exist.
func handleMissingConfigFile(configFile, cookiesFile string, err error) error {
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Only the updated key is written so defaults keep applying to everything else.
	content, err := yaml.Marshal(map[string]string{cookiesFileKey: cookiesFile})
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err = os.WriteFile(configFile, content, constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	return nil
}

// updateKeyInNode sets a top-level scalar value in the YAML node tree, appending the key if absent.
func updateKeyInNode(node *yaml.Node, key, value string) {
	// The root node is a document node, content[0] is the actual map.
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return
	}

	mapNode := node.Content[0]

	// Iterate through key-value pairs (stored as alternating nodes).
	for i := 0; i+1 < len(mapNode.Content); i += 2 {
		keyNode := mapNode.Content[i]
		valueNode := mapNode.Content[i+1]

		if keyNode.Value == key {
			valueNode.Value = value

			if valueNode.Style == 0 {
				valueNode.Style = yaml.DoubleQuotedStyle
			}

			return
		}
	}

	mapNode.Content = append(mapNode.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: yaml.DoubleQuotedStyle},
	)
}
