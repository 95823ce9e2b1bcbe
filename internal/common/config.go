package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Browser   BrowserConfig   `toml:"browser"`
	Storage   StorageConfig   `toml:"storage"`
	Login     LoginConfig     `toml:"login"`
	Extractor ExtractorConfig `toml:"extractor"`
	Images    ImagesConfig    `toml:"images"`
	Logging   LoggingConfig   `toml:"logging"`
}

// BrowserConfig controls how the automation browser is launched
type BrowserConfig struct {
	Headless          bool   `toml:"headless"`           // Run work units without a visible window (login is always visible)
	ChromePath        string `toml:"chrome_path"`        // Explicit Chrome/Chromium executable (default: auto-detect)
	NoSandbox         bool   `toml:"no_sandbox"`         // Pass --no-sandbox (needed in most containers)
	UserAgent         string `toml:"user_agent"`         // Override the browser user agent (default: browser native)
	WindowWidth       int    `toml:"window_width"`       // Viewport width
	WindowHeight      int    `toml:"window_height"`      // Viewport height
	NavigationTimeout string `toml:"navigation_timeout"` // e.g., "60s" - bound for a single navigation or element action
}

type StorageConfig struct {
	DataDir     string `toml:"data_dir"`     // Working directory for screenshots, logs and the credential blob
	StoragePath string `toml:"storage_path"` // Credential blob path (default: <data_dir>/storageState.json)
}

// LoginConfig contains timing for the QR-code login handshake
type LoginConfig struct {
	Timeout    string `toml:"timeout"`     // How long a handshake window stays open (default: "4m")
	CheckDelay string `toml:"check_delay"` // Settle time after navigating for a status check (default: "1s")
	OpenDelay  string `toml:"open_delay"`  // Settle time after opening the interactive window (default: "2s")
}

type ExtractorConfig struct {
	Timeout string `toml:"timeout"` // Wait bound for a state-tree path to resolve (default: "30s")
}

// ImagesConfig controls remote image downloads used by publish_content
type ImagesConfig struct {
	DownloadDir     string  `toml:"download_dir"`     // Cache directory for downloaded images (default: <tmp>/xiaohongshu_images)
	RateLimit       float64 `toml:"rate_limit"`       // Downloads per second
	DownloadTimeout string  `toml:"download_timeout"` // Per-image HTTP timeout
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
	FileName   string   `toml:"file_name"`   // Log file (default: <data_dir>/logs/redbook.log)
}

// DefaultDataDir returns ~/.redbook-mcp, or ./.redbook-mcp when the home directory is unknown
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".redbook-mcp"
	}
	return filepath.Join(home, ".redbook-mcp")
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Browser: BrowserConfig{
			Headless:          true,
			WindowWidth:       1366,
			WindowHeight:      900,
			NavigationTimeout: "60s",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Login: LoginConfig{
			Timeout:    "4m",
			CheckDelay: "1s",
			OpenDelay:  "2s",
		},
		Extractor: ExtractorConfig{
			Timeout: "30s",
		},
		Images: ImagesConfig{
			DownloadDir:     filepath.Join(os.TempDir(), "xiaohongshu_images"),
			RateLimit:       2,
			DownloadTimeout: "30s",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"file"}, // stdout belongs to the MCP transport in serve mode
			TimeFormat: "15:04:05.000",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
// An empty path skips the file layer.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Names shared with existing redbook-mcp installations
	if dir := os.Getenv("XHS_DATA_DIR"); dir != "" {
		config.Storage.DataDir = dir
	}
	if path := os.Getenv("XHS_STORAGE_PATH"); path != "" {
		config.Storage.StoragePath = path
	}
	if path := os.Getenv("XHS_CHROME_PATH"); path != "" {
		config.Browser.ChromePath = path
	}

	if headless := os.Getenv("REDBOOK_HEADLESS"); headless != "" {
		if b, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = b
		}
	}
	if noSandbox := os.Getenv("REDBOOK_NO_SANDBOX"); noSandbox != "" {
		if b, err := strconv.ParseBool(noSandbox); err == nil {
			config.Browser.NoSandbox = b
		}
	}
	if timeout := os.Getenv("REDBOOK_LOGIN_TIMEOUT"); timeout != "" {
		config.Login.Timeout = timeout
	}

	// Logging configuration
	if level := os.Getenv("REDBOOK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("REDBOOK_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// FlagOverrides carries CLI flag values; nil fields were not set on the command line
type FlagOverrides struct {
	DataDir     *string
	StoragePath *string
	ChromePath  *string
	Headless    *bool
}

// ApplyFlagOverrides applies CLI flag overrides to config (highest priority)
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.DataDir != nil && *flags.DataDir != "" {
		config.Storage.DataDir = *flags.DataDir
	}
	if flags.StoragePath != nil && *flags.StoragePath != "" {
		config.Storage.StoragePath = *flags.StoragePath
	}
	if flags.ChromePath != nil && *flags.ChromePath != "" {
		config.Browser.ChromePath = *flags.ChromePath
	}
	if flags.Headless != nil {
		config.Browser.Headless = *flags.Headless
	}
}

// ResolvedStoragePath returns the credential blob path, defaulting to <data_dir>/storageState.json
func (c *Config) ResolvedStoragePath() string {
	if c.Storage.StoragePath != "" {
		return c.Storage.StoragePath
	}
	return filepath.Join(c.Storage.DataDir, "storageState.json")
}

// ScreenshotsDir returns where diagnostic screenshots are written
func (c *Config) ScreenshotsDir() string {
	return filepath.Join(c.Storage.DataDir, "screenshots")
}

// LogFilePath returns the configured log file, defaulting to <data_dir>/logs/redbook.log
func (c *Config) LogFilePath() string {
	if c.Logging.FileName != "" {
		return c.Logging.FileName
	}
	return filepath.Join(c.Storage.DataDir, "logs", "redbook.log")
}

// ParseDuration parses a duration string, returning fallback when it is empty or invalid
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c *Config) NavigationTimeout() time.Duration {
	return ParseDuration(c.Browser.NavigationTimeout, 60*time.Second)
}

func (c *Config) LoginTimeout() time.Duration {
	return ParseDuration(c.Login.Timeout, 4*time.Minute)
}

func (c *Config) LoginCheckDelay() time.Duration {
	return ParseDuration(c.Login.CheckDelay, time.Second)
}

func (c *Config) LoginOpenDelay() time.Duration {
	return ParseDuration(c.Login.OpenDelay, 2*time.Second)
}

func (c *Config) ExtractorTimeout() time.Duration {
	return ParseDuration(c.Extractor.Timeout, 30*time.Second)
}

func (c *Config) ImageDownloadTimeout() time.Duration {
	return ParseDuration(c.Images.DownloadTimeout, 30*time.Second)
}
