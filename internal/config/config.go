package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "KEYHUB"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabasePath   = "keyhub.db"
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
	defaultCookieName     = "keyhub_session"
	defaultSessionIssuer  = "keyhub-auth"
	defaultWriteBatchSize = 100
	defaultImportTimeout  = 10 * time.Second
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress         string
	AllowedOrigins      []string
	SessionSigningKey   string
	SessionCookieName   string
	SessionIssuer       string
	DatabasePath        string
	WriteBatchSize      int
	LegacyImportURL     string
	LegacyImportTimeout time.Duration
	LogLevel            string
	LogFormat           string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
// KEYHUB_STORAGE_WRITE_BATCH_SIZE maps onto storage.write_batch_size.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("storage.write_batch_size", defaultWriteBatchSize)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("import.base_url", "")
	configViper.SetDefault("import.timeout", defaultImportTimeout)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		AllowedOrigins:      splitList(configViper.GetStringSlice("http.allowed_origins")),
		SessionSigningKey:   configViper.GetString("session.signing_secret"),
		SessionCookieName:   configViper.GetString("session.cookie_name"),
		SessionIssuer:       configViper.GetString("session.issuer"),
		DatabasePath:        configViper.GetString("database.path"),
		WriteBatchSize:      configViper.GetInt("storage.write_batch_size"),
		LegacyImportURL:     strings.TrimSpace(configViper.GetString("import.base_url")),
		LegacyImportTimeout: configViper.GetDuration("import.timeout"),
		LogLevel:            configViper.GetString("log.level"),
		LogFormat:           strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// LoadStorage parses only the settings needed by offline commands that touch the database.
func LoadStorage(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DatabasePath:   configViper.GetString("database.path"),
		WriteBatchSize: configViper.GetInt("storage.write_batch_size"),
		LogLevel:       configViper.GetString("log.level"),
		LogFormat:      strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
	}
	if err := cfg.validateStorage(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningKey) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.LegacyImportTimeout <= 0 {
		return fmt.Errorf("import.timeout must be positive")
	}
	return c.validateStorage()
}

func (c AppConfig) validateStorage() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.WriteBatchSize <= 0 {
		return fmt.Errorf("storage.write_batch_size must be positive, got %d", c.WriteBatchSize)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated env value.
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}
