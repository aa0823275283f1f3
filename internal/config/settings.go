package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Settings are the API server's runtime parameters, read from the
// environment and optionally a settings file.
type Settings struct {
	Port      string        `mapstructure:"API_PORT"`
	Env       string        `mapstructure:"API_ENV"`
	DBPath    string        `mapstructure:"DB_PATH"`
	TariffDir string        `mapstructure:"TARIFF_DIR"`
	StaticDir string        `mapstructure:"STATIC_DIR"`
	CacheTTL  time.Duration `mapstructure:"CACHE_TTL"`
	LogLevel  string        `mapstructure:"LOG_LEVEL"`
	LogFormat string        `mapstructure:"LOG_FORMAT"`
	// CORSOrigins is a comma-separated list in the environment.
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	// MaxUploadBytes caps request bodies on upload routes.
	MaxUploadBytes int64 `mapstructure:"MAX_UPLOAD_BYTES"`
}

var settingDefaults = map[string]any{
	"API_PORT":         "8080",
	"API_ENV":          "development",
	"DB_PATH":          "./data/bess.db",
	"TARIFF_DIR":       "./tariffs",
	"STATIC_DIR":       "",
	"CACHE_TTL":        "10m",
	"LOG_LEVEL":        "info",
	"LOG_FORMAT":       "json",
	"CORS_ORIGINS":     "*",
	"MAX_UPLOAD_BYTES": int64(32 << 20),
}

// LoadSettings reads settings from the environment. When path is non-empty
// the file is read first and environment variables still take precedence.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	for k, def := range settingDefaults {
		v.SetDefault(k, def)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading settings file, %s", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unable to decode settings, %s", err)
	}
	if s.CacheTTL < 0 {
		return nil, fmt.Errorf("CACHE_TTL must be >= 0, got %s", s.CacheTTL)
	}
	return &s, nil
}

func (s *Settings) Addr() string { return ":" + s.Port }

func (s *Settings) IsProduction() bool { return s.Env == "production" }

func (s *Settings) Logging() LoggingConfig {
	return LoggingConfig{Level: s.LogLevel, Format: s.LogFormat}
}
