// Package config loads labelsync settings from a YAML file, the
// environment and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/labelsync/internal/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. LABELSYNC_INDEX_PATH.
const EnvPrefix = "LABELSYNC"

// ExceptionLogName is the fixed file name of the diagnostic trace written
// on unexpected failures.
const ExceptionLogName = "labelsync-exception-log.txt"

// IndexConfig locates the message index.
type IndexConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// IMAPConfig holds settings for IMAP sources.
type IMAPConfig struct {
	// KeyringService is the keyring service name passwords are stored under.
	KeyringService string `mapstructure:"keyring_service" yaml:"keyring_service"`

	// KeyringDir is the directory of the encrypted-file keyring backend,
	// used when no system keyring is available.
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// Config is the top-level configuration.
type Config struct {
	Index          IndexConfig   `mapstructure:"index" yaml:"index"`
	ReportInterval time.Duration `mapstructure:"report_interval" yaml:"report_interval"`
	ExceptionLog   string        `mapstructure:"exception_log" yaml:"exception_log"`
	IMAP           IMAPConfig    `mapstructure:"imap" yaml:"imap"`
}

// HomeDir returns the directory labelsync keeps its state in,
// ~/.labelsync, falling back to the working directory.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".labelsync")
}

// DefaultPath returns the default configuration file,
// ~/.config/labelsync/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "labelsync", "config.yaml")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	home := HomeDir()
	return &Config{
		Index:          IndexConfig{Path: filepath.Join(home, "index.db")},
		ReportInterval: telemetry.DefaultInterval,
		ExceptionLog:   filepath.Join(home, ExceptionLogName),
		IMAP: IMAPConfig{
			KeyringService: "labelsync",
			KeyringDir:     filepath.Join(home, "keyring"),
		},
	}
}

// Load reads the configuration file at path, layering LABELSYNC_*
// environment variables over it. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("index.path", def.Index.Path)
	v.SetDefault("report_interval", def.ReportInterval)
	v.SetDefault("exception_log", def.ExceptionLog)
	v.SetDefault("imap.keyring_service", def.IMAP.KeyringService)
	v.SetDefault("imap.keyring_dir", def.IMAP.KeyringDir)
	v.SetDefault("imap.insecure_skip_verify", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.ReportInterval <= 0 {
		return nil, fmt.Errorf("config %s: report_interval must be positive, got %s", path, cfg.ReportInterval)
	}
	cfg.Index.Path = expandHome(cfg.Index.Path)
	cfg.ExceptionLog = expandHome(cfg.ExceptionLog)
	cfg.IMAP.KeyringDir = expandHome(cfg.IMAP.KeyringDir)
	return cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
