package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Backend settings
	APIURL         string        `yaml:"api_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Local state
	StatePath string `yaml:"state_path"`
	LogPath   string `yaml:"log_path"`

	// UI settings
	NotificationTTL time.Duration `yaml:"notification_ttl"`
	DefaultMode     string        `yaml:"default_mode"`
	HistoryPageSize int           `yaml:"history_page_size"`

	// Background work
	PresenceInterval time.Duration `yaml:"presence_interval"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	UploadWorkers    int           `yaml:"upload_workers"`

	// Feature flags
	Verbose bool `yaml:"verbose"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		APIURL: "http://localhost:8000/api/v1",
		// Zero means no client-side timeout; a hung call waits for the transport.
		RequestTimeout: 0,

		StatePath: expandHome("~/.ragdesk/state.json"),
		LogPath:   expandHome("~/.ragdesk/ragdesk.log"),

		NotificationTTL: 4 * time.Second,
		DefaultMode:     "auto",
		HistoryPageSize: 20,

		PresenceInterval: 30 * time.Second,
		PollInterval:     3 * time.Second,
		UploadWorkers:    3,

		Verbose: false,
	}
}

// DefaultFilePath is where Load looks for the optional YAML config file.
func DefaultFilePath() string {
	return expandHome("~/.ragdesk/config.yaml")
}

// Load builds a Config from defaults, the optional YAML file at path, a
// .env file in the working directory, and the environment, in that order.
// A missing YAML or .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// .env only fills variables that are not already set
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.StatePath = expandHome(c.StatePath)
	c.LogPath = expandHome(c.LogPath)
	return nil
}

func (c *Config) applyEnv() error {
	if v := GetEnv("RAGDESK_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := GetEnv("RAGDESK_STATE_PATH"); v != "" {
		c.StatePath = expandHome(v)
	}
	if v := GetEnv("RAGDESK_LOG_FILE"); v != "" {
		c.LogPath = expandHome(v)
	}
	if v := GetEnv("RAGDESK_VERBOSE"); v != "" {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RAGDESK_VERBOSE value %q: %w", v, err)
		}
		c.Verbose = verbose
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("API URL cannot be empty")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API URL must be absolute, got %q", c.APIURL)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state path cannot be empty")
	}
	if c.NotificationTTL <= 0 {
		return fmt.Errorf("notification TTL must be positive")
	}
	if c.HistoryPageSize < 1 || c.HistoryPageSize > 100 {
		return fmt.Errorf("history page size must be between 1 and 100")
	}
	if c.PresenceInterval <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	if c.UploadWorkers < 1 {
		return fmt.Errorf("upload workers must be at least 1")
	}
	return nil
}

// expandHome expands the ~ in file paths to the user's home directory
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir := getHomeDir()
		return homeDir + path[1:]
	}
	return path
}

// getHomeDir returns the user's home directory
func getHomeDir() string {
	if home := GetEnv("HOME"); home != "" {
		return home
	}
	// Fallback for Windows
	if home := GetEnv("USERPROFILE"); home != "" {
		return home
	}
	return "."
}

// GetEnv is a wrapper around os.Getenv for easier testing
var GetEnv = os.Getenv
