package config

import (
	"fmt"
	"net"
	"os"
	"strings"
)

type HTTPConfig struct {
	Addr string
}

// BuildInfo is stamped into the image at build time and surfaced by / and /version.
type BuildInfo struct {
	Version   string
	BuildDate string
	GitSHA    string
}

type AppConfig struct {
	ServiceName string
	LogLevel    string
	Env         string
	HTTP        HTTPConfig
	Build       BuildInfo
}

func Load() (AppConfig, error) {
	cfg := LoadBase()
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return AppConfig{}, fmt.Errorf("HTTP_ADDR %q: %w", cfg.HTTP.Addr, err)
	}
	return cfg, nil
}

// LoadBase reads the same variables as Load without validating the listener,
// for tools such as the migrator that never serve HTTP.
func LoadBase() AppConfig {
	return AppConfig{
		ServiceName: envOr("SERVICE_NAME", "containerlab-web"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		Env:         envOr("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Addr: envOr("HTTP_ADDR", ":5000"),
		},
		Build: BuildInfo{
			Version:   envOr("APP_VERSION", "dev"),
			BuildDate: envOr("BUILD_DATE", "unknown"),
			GitSHA:    envOr("GIT_SHA", "unknown"),
		},
	}
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
