package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	API     APIConfig     `mapstructure:"api"`
	Metagen MetagenConfig `mapstructure:"metagen"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig holds catalog storage configuration
type StorageConfig struct {
	Dir     string `mapstructure:"dir"`      // Data directory for the bolt files
	QuotaMB int64  `mapstructure:"quota_mb"` // Blob byte budget in MiB, 0 = unlimited
}

// APIConfig holds the HTTP API configuration
type APIConfig struct {
	Listen string `mapstructure:"listen"` // Listen address for serve mode
}

// MetagenConfig holds metadata-generation service configuration
type MetagenConfig struct {
	Endpoint string `mapstructure:"endpoint"` // Base URL, empty = public endpoint
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// QuotaBytes converts the configured MiB budget to bytes.
func (s StorageConfig) QuotaBytes() int64 {
	return s.QuotaMB * 1024 * 1024
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Dir:     defaultDataPath(),
			QuotaMB: 0,
		},
		API: APIConfig{
			Listen: "127.0.0.1:8480",
		},
		Metagen: MetagenConfig{},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "megakino")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "megakino")
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "megakino", "megakino.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "megakino", "megakino.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "megakino")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "megakino")
	}
}

// Exists reports whether a config file is present in the config directory
func Exists() bool {
	_, err := os.Stat(filepath.Join(defaultConfigPath(), "config.yaml"))
	return err == nil
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("MEGAKINO")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set("storage.dir", cfg.Storage.Dir)
	viper.Set("storage.quota_mb", cfg.Storage.QuotaMB)
	viper.Set("api.listen", cfg.API.Listen)
	viper.Set("metagen.endpoint", cfg.Metagen.Endpoint)
	viper.Set("metagen.model", cfg.Metagen.Model)
	viper.Set("metagen.api_key", cfg.Metagen.APIKey)
	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
