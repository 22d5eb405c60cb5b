package db

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config describes the Postgres connection target. URL, when set, wins over the parts.
type Config struct {
	URL            string
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	ConnectTimeout time.Duration
}

// LoadConfig reads DATABASE_URL or the DB_* variables.
func LoadConfig() (Config, error) {
	cfg := Config{
		URL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Host:     envOr("DB_HOST", "db"),
		Port:     envOr("DB_PORT", "5432"),
		Name:     envOr("DB_NAME", "appdb"),
		User:     envOr("DB_USER", "appuser"),
		Password: envOr("DB_PASSWORD", "apppass"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	}

	timeout := envOr("DB_CONNECT_TIMEOUT", "5s")
	d, err := time.ParseDuration(timeout)
	if err != nil || d <= 0 {
		return Config{}, fmt.Errorf("DB_CONNECT_TIMEOUT %q: must be a positive duration", timeout)
	}
	cfg.ConnectTimeout = d
	return cfg, nil
}

// DSN renders the config as a postgres:// URL understood by pgx.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Redacted is DSN with the password masked, for logs.
func (c Config) Redacted() string {
	u, err := url.Parse(c.DSN())
	if err != nil {
		return "<invalid dsn>"
	}
	return u.Redacted()
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
