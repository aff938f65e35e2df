package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// AppName names the config and data directories.
const AppName = "tta"

// Config is the root configuration, read from config.toml, the environment
// and command-line flags (highest precedence last).
type Config struct {
	// DBURL selects the interval store, e.g. "bolt:///var/lib/tta/entries.db",
	// "sqlite://entries.sqlite", "file://./days" or "memory://".
	// Empty means a bolt database in the XDG data directory.
	DBURL string `mapstructure:"db_url" toml:"db_url" comment:"Interval store connection string (env DB_URL). Empty uses a bolt file in the data directory."`
	// Port is the HTTP listen port.
	Port int `mapstructure:"port" toml:"port" comment:"HTTP listen port (env PORT)."`
	// Timezone is the IANA zone that defines days and weeks. Empty = Local.
	Timezone string        `mapstructure:"timezone" toml:"timezone" comment:"IANA time zone for day and week boundaries, e.g. Europe/Berlin. Empty uses the host zone."`
	Log      LogConfig     `mapstructure:"log" toml:"log"`
	Outlook  OutlookConfig `mapstructure:"outlook" toml:"outlook"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level" comment:"debug, info, warn or error."`
	Format string `mapstructure:"format" toml:"format" comment:"text or json."`
	// File enables a rotating log file in addition to stderr.
	File       string `mapstructure:"file" toml:"file" comment:"Optional log file, rotated by size."`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days"`
}

// OutlookConfig holds Microsoft Graph / Outlook calendar import settings.
type OutlookConfig struct {
	// TenantID is the Azure AD tenant. Use "common" for personal/multi-tenant accounts.
	TenantID string `mapstructure:"tenant_id" toml:"tenant_id" comment:"Azure AD tenant; \"common\" works for personal and most organisational accounts."`
	// ClientID is the Azure app (client) ID for the OAuth2 device code flow.
	ClientID string `mapstructure:"client_id" toml:"client_id" comment:"Azure application id used for the device code flow."`
	// Timezone is the IANA timezone for event times (e.g. "Europe/Berlin"). Empty = UTC.
	Timezone string `mapstructure:"timezone" toml:"timezone" comment:"IANA time zone of calendar event times. Empty uses UTC."`
}

const (
	// DefaultPort is the HTTP listen port used when none is configured.
	DefaultPort = 5050
	// DefaultTenantID is the Microsoft "common" tenant (supports personal and
	// multi-tenant organisational accounts without additional registration).
	DefaultTenantID = "common"
	// DefaultClientID is the well-known public Azure CLI app ID.
	// It supports device code flow without a client secret and requires no
	// app registration.
	DefaultClientID = "04b07795-8542-4c4a-95af-30b2c573d5ab"
)

const (
	keyDBURL          = "db_url"
	keyPort           = "port"
	keyTimezone       = "timezone"
	keyLogLevel       = "log.level"
	keyLogFormat      = "log.format"
	keyLogFile        = "log.file"
	keyLogMaxSize     = "log.max_size_mb"
	keyLogMaxBackups  = "log.max_backups"
	keyLogMaxAge      = "log.max_age_days"
	keyOutlookTenant  = "outlook.tenant_id"
	keyOutlookClient  = "outlook.client_id"
	keyOutlookTZ      = "outlook.timezone"
	envPrefix         = "TTA"
	configFileHeader  = "# tta configuration\n#\n# All settings are optional. Environment variables override this file:\n# DB_URL, PORT and TTA_<KEY> (for example TTA_TIMEZONE, TTA_LOG_LEVEL).\n\n"
	configFileMode    = 0o600
	configDirMode     = 0o700
	defaultConfigName = "config.toml"
)

// Default returns a Config pre-filled with the built-in defaults.
func Default() Config {
	return Config{
		Port: DefaultPort,
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Outlook: OutlookConfig{
			TenantID: DefaultTenantID,
			ClientID: DefaultClientID,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/tta/config.toml.
func DefaultPath() (string, error) {
	path, err := xdg.ConfigFile(filepath.Join(AppName, defaultConfigName))
	if err != nil {
		return "", fmt.Errorf("cannot determine config path: %w", err)
	}
	return path, nil
}

// Load reads the configuration at path (DefaultPath when empty), creating
// it with annotated defaults on first run. v may carry flag bindings; nil
// uses a fresh viper instance.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return Default(), err
		}
	}

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Default(), err
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return Default(), fmt.Errorf("reading config file %s: %w", path, err)
		}
		// First run: write the annotated defaults so users can discover options.
		if writeErr := WriteDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(keyDBURL, d.DBURL)
	v.SetDefault(keyPort, d.Port)
	v.SetDefault(keyTimezone, d.Timezone)
	v.SetDefault(keyLogLevel, d.Log.Level)
	v.SetDefault(keyLogFormat, d.Log.Format)
	v.SetDefault(keyLogFile, d.Log.File)
	v.SetDefault(keyLogMaxSize, d.Log.MaxSizeMB)
	v.SetDefault(keyLogMaxBackups, d.Log.MaxBackups)
	v.SetDefault(keyLogMaxAge, d.Log.MaxAgeDays)
	v.SetDefault(keyOutlookTenant, d.Outlook.TenantID)
	v.SetDefault(keyOutlookClient, d.Outlook.ClientID)
	v.SetDefault(keyOutlookTZ, d.Outlook.Timezone)
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The store connection string and port keep their conventional names.
	if err := v.BindEnv(keyDBURL, "DB_URL", envPrefix+"_DB_URL"); err != nil {
		return fmt.Errorf("binding %s: %w", keyDBURL, err)
	}
	if err := v.BindEnv(keyPort, "PORT", envPrefix+"_PORT"); err != nil {
		return fmt.Errorf("binding %s: %w", keyPort, err)
	}
	return nil
}

// Validate checks values that cannot be expressed by types alone.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", c.Log.Format)
	}
	return nil
}

// Location resolves Timezone; empty means the host's local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// WriteDefault creates the config directory and writes the annotated
// default configuration.
func WriteDefault(path string) error {
	body, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), configDirMode); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data := append([]byte(configFileHeader), body...)
	if err := os.WriteFile(path, data, configFileMode); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
