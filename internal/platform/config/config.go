// Package config loads process-level configuration from the environment.
// Game economy tunables do NOT live here; those come from the settings provider.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server holds the deployment knobs of the game server process.
type Server struct {
	Addr            string        `env:"MAGNAT_ADDR" envDefault:":8080"`
	DBDriver        string        `env:"MAGNAT_DB_DRIVER" envDefault:"sqlite"` // sqlite | postgres
	SQLitePath      string        `env:"MAGNAT_SQLITE_PATH" envDefault:"magnat.db"`
	PostgresDSN     string        `env:"MAGNAT_POSTGRES_DSN"`
	ShutdownTimeout time.Duration `env:"MAGNAT_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	SnapshotEvery   time.Duration `env:"MAGNAT_SNAPSHOT_EVERY" envDefault:"5s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
