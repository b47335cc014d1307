package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

//go:embed config.example.toml
var exampleConf []byte

const appName = "fedsearch"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Log          LogConfig          `toml:"log"`
	Database     DatabaseConfig     `toml:"database"`
	Server       ServerConfig       `toml:"server"`
	Lastfm       LastfmConfig       `toml:"lastfm"`
	Spotify      SpotifyConfig      `toml:"spotify"`
	YouTube      YouTubeConfig      `toml:"youtube"`
	Info         InfoConfig         `toml:"info"`
	Pipeline     PipelineConfig     `toml:"pipeline"`
	Connectivity ConnectivityConfig `toml:"connectivity"`
	Retry        RetryConfig        `toml:"retry"`
}

// LogConfig controls log verbosity and the TUI log file.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DatabaseConfig contains database connection settings for the local library.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LastfmConfig contains Last.fm API credentials. An empty key disables the provider.
type LastfmConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	Limit     int    `toml:"limit"`
}

// SpotifyConfig contains Spotify client credentials. An empty client ID disables the provider.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Market       string `toml:"market"`
	Limit        int    `toml:"limit"`
}

// YouTubeConfig contains YouTube Music proxy settings. An empty proxy URL disables the resolver.
type YouTubeConfig struct {
	ProxyURL    string `toml:"proxy_url"`
	HeadersPath string `toml:"headers_path"`
}

// InfoConfig tunes the info system shared by all metadata providers.
type InfoConfig struct {
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	Timeout           time.Duration `toml:"timeout"`
}

// PipelineConfig tunes the track resolution pipeline.
type PipelineConfig struct {
	MaxConcurrent int           `toml:"max_concurrent"`
	LibraryLimit  int           `toml:"library_limit"`
	Timeout       time.Duration `toml:"timeout"`
}

// ConnectivityConfig controls the network reachability probe.
type ConnectivityConfig struct {
	ProbeAddr string        `toml:"probe_addr"`
	Interval  time.Duration `toml:"interval"`
	Timeout   time.Duration `toml:"timeout"`
}

// RetryConfig controls re-dispatch when connectivity comes back.
type RetryConfig struct {
	MinInterval time.Duration `toml:"min_interval"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the defaults from the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, os.ErrExist)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the XDG config location, e.g. ~/.config/fedsearch/config.toml.
func DefaultConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(appName, "config.toml"))
}

// DefaultDatabasePath returns the XDG data location of the library database.
func DefaultDatabasePath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, "library.db"))
}

// Validate rejects negative limits and intervals.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	case c.Info.RequestsPerSecond < 0:
		return fmt.Errorf("%w: info.requests_per_second must not be negative", ErrInvalidConfig)
	case c.Info.Burst < 0:
		return fmt.Errorf("%w: info.burst must not be negative", ErrInvalidConfig)
	case c.Pipeline.MaxConcurrent < 0:
		return fmt.Errorf("%w: pipeline.max_concurrent must not be negative", ErrInvalidConfig)
	case c.Pipeline.LibraryLimit < 0:
		return fmt.Errorf("%w: pipeline.library_limit must not be negative", ErrInvalidConfig)
	case c.Connectivity.Interval < 0 || c.Connectivity.Timeout < 0:
		return fmt.Errorf("%w: connectivity intervals must not be negative", ErrInvalidConfig)
	case c.Retry.MinInterval < 0:
		return fmt.Errorf("%w: retry.min_interval must not be negative", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
