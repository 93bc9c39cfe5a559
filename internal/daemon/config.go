// Package daemon manages the plano runtime lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/plano-ai/plano/internal/infra/interpret"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Storage   StorageConfig   `toml:"storage"`
	Services  ServicesConfig  `toml:"services"`
	Progress  ProgressConfig  `toml:"progress"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host" validate:"required"`
	Port int    `toml:"port" validate:"min=1,max=65535"`
}

// StorageConfig selects the state store.
type StorageConfig struct {
	Driver string `toml:"driver" validate:"oneof=sqlite badger"`
	// Dir holds the database files. Empty means the data home.
	Dir string `toml:"dir"`
}

// ServicesConfig selects the plan interpretation and photo analysis backend.
type ServicesConfig struct {
	Backend           string `toml:"backend" validate:"oneof=http openai fixture"`
	BaseURL           string `toml:"base_url" validate:"omitempty,url"`
	Timeout           string `toml:"timeout"`
	RequestsPerMinute int    `toml:"requests_per_minute" validate:"min=0"`
	// Retries is how often a transient failure (5xx, 429, network) is retried.
	Retries           int    `toml:"retries" validate:"min=0,max=10"`
	OpenAIModel       string `toml:"openai_model"`
	OpenAIBaseURL     string `toml:"openai_base_url" validate:"omitempty,url"`
}

// ProgressConfig tunes scoring and streak rules.
type ProgressConfig struct {
	// Timezone is an IANA name; empty or "Local" uses the system zone.
	Timezone      string `toml:"timezone"`
	PerfectDay    bool   `toml:"perfect_day"`
	RequirePhotos bool   `toml:"require_photos"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// TelemetryConfig controls the metrics endpoint.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// Secrets come from the environment, never from config.toml.
type Secrets struct {
	OpenAIKey    string
	ServiceToken string
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
		},
		Services: ServicesConfig{
			Backend:           "http",
			BaseURL:           "http://localhost:8000",
			Timeout:           "60s",
			RequestsPerMinute: 30,
			Retries:           2,
			OpenAIModel:       "gpt-4o-mini",
		},
		Progress: ProgressConfig{
			Timezone: "Local",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field values, the timezone and the log level.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(parts, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid config: logging.level: %w", err)
	}
	return nil
}

// Location resolves progress.timezone.
func (c Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Progress.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid config: progress.timezone %q: %w", tz, err)
	}
	return loc, nil
}

// ServiceTimeout parses services.timeout, defaulting to 60s.
func (c Config) ServiceTimeout() time.Duration {
	return parseDuration(c.Services.Timeout, 60*time.Second)
}

// RetryConfig applies services.retries to the default backoff.
func (c Config) RetryConfig() interpret.RetryConfig {
	rc := interpret.DefaultRetryConfig()
	rc.MaxRetries = c.Services.Retries
	return rc
}

// StorageDir returns the directory of the state store.
func (c Config) StorageDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return planoHome()
}

// LoadConfig reads config from ~/.plano/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom reads config from path, falling back to defaults when the
// file does not exist.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.plano/config.toml.
func SaveConfig(cfg Config) error {
	return SaveConfigTo(ConfigPath(), cfg)
}

// SaveConfigTo writes the config to path.
func SaveConfigTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// LoadEnv loads .env files from the working directory and the data home.
// Variables already set in the environment win; missing files are skipped.
func LoadEnv() error {
	for _, path := range []string{".env", filepath.Join(planoHome(), ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// LoadSecrets reads API credentials from the environment.
func LoadSecrets() Secrets {
	return Secrets{
		OpenAIKey:    strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		ServiceToken: strings.TrimSpace(os.Getenv("PLANO_SERVICE_TOKEN")),
	}
}

// planoHome returns the plano data directory.
func planoHome() string {
	if env := os.Getenv("PLANO_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".plano")
}

// PlanoHome is exported for use by other packages.
func PlanoHome() string {
	return planoHome()
}

// ConfigPath returns the location of config.toml.
func ConfigPath() string {
	return filepath.Join(planoHome(), "config.toml")
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
