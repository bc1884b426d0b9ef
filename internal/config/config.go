// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const referenceDateLayout = "2006-01-02"

// Config holds all configuration for the application.
type Config struct {
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	GithubToken        string        `mapstructure:"GITHUB_TOKEN"`
	GithubBaseURL      string        `mapstructure:"GITHUB_BASE_URL"`
	TrackedAccounts    []string      `mapstructure:"TRACKED_ACCOUNTS"`
	PollInterval       time.Duration `mapstructure:"POLL_INTERVAL"`
	ReferenceDate      string        `mapstructure:"REFERENCE_DATE"`
	ReferenceTime      time.Time     `mapstructure:"-"`
	AccountConcurrency int           `mapstructure:"ACCOUNT_CONCURRENCY"`
	HTTPAddr           string        `mapstructure:"HTTP_ADDR"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxAttempts        int           `mapstructure:"MAX_ATTEMPTS"`
}

// SetDefaults registers every known key on v. Keys without a default would
// otherwise be invisible to Unmarshal even when set in the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_BASE_URL", "")
	v.SetDefault("TRACKED_ACCOUNTS", []string{})
	v.SetDefault("POLL_INTERVAL", "100s")
	v.SetDefault("REFERENCE_DATE", "2024-09-27")
	v.SetDefault("ACCOUNT_CONCURRENCY", 1)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("MAX_ATTEMPTS", 3)
}

// LoadConfig reads configuration from the global viper instance.
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load reads configuration from file and/or environment variables into v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	ref, err := ParseReferenceDate(cfg.ReferenceDate)
	if err != nil {
		return nil, err
	}
	cfg.ReferenceTime = ref
	cfg.TrackedAccounts = normalizeAccounts(cfg.TrackedAccounts)

	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL must be a positive duration")
	}
	if cfg.AccountConcurrency < 1 {
		return nil, errors.New("ACCOUNT_CONCURRENCY must be at least 1")
	}
	if cfg.MaxAttempts < 1 {
		return nil, errors.New("MAX_ATTEMPTS must be at least 1")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, errors.New("REQUEST_TIMEOUT must be a positive duration")
	}

	return &cfg, nil
}

// ParseReferenceDate accepts either a calendar date, interpreted as local
// midnight, or a full RFC3339 instant.
func ParseReferenceDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(referenceDateLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("REFERENCE_DATE must be YYYY-MM-DD or RFC3339 (got %q)", s)
	}
	return t, nil
}

// normalizeAccounts also splits entries, since a single env value like
// "alice, bob" may reach us unsplit or with stray whitespace.
func normalizeAccounts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, a := range strings.Split(entry, ",") {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
	}
	return out
}
