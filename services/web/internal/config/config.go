package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/example/containerlab/internal/platform/db"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	// StoreBackend selects postgres (default) or memory for local development.
	StoreBackend string
	DB           db.Config
	// NATSURL enables users.* event publishing when set.
	NATSURL string
}

func Load() (Config, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))
	if backend == "" {
		backend = BackendPostgres
	}
	if backend != BackendPostgres && backend != BackendMemory {
		return Config{}, fmt.Errorf("STORE_BACKEND %q: want %s or %s", backend, BackendPostgres, BackendMemory)
	}

	dbCfg, err := db.LoadConfig()
	if err != nil {
		return Config{}, err
	}
	return Config{
		StoreBackend: backend,
		DB:           dbCfg,
		NATSURL:      strings.TrimSpace(os.Getenv("NATS_URL")),
	}, nil
}

// CheckEnvironment rejects settings that are only meant for development.
func (c Config) CheckEnvironment(production bool) error {
	if production && c.StoreBackend == BackendMemory {
		return fmt.Errorf("STORE_BACKEND=%s is not allowed in production", BackendMemory)
	}
	return nil
}
