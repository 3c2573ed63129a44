// Package cfg loads process configuration for cmd/installhostd from the
// environment, following the .env-plus-cleanenv convention seen in the
// teacher's sibling snapshot's config.go/LoadConfig.
package cfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	configDirPathEnv     = "INSTALLPROTO_CONFIG_DIR"
	defaultConfigDirPath = "."
	defaultChainID       = 1337
)

// DatabaseConfig is read directly by cleanenv from INSTALLPROTO_DB_* env vars.
type DatabaseConfig struct {
	Host     string `env:"INSTALLPROTO_DB_HOST" env-default:"localhost"`
	Port     int    `env:"INSTALLPROTO_DB_PORT" env-default:"5432"`
	User     string `env:"INSTALLPROTO_DB_USER" env-default:"installproto"`
	Password string `env:"INSTALLPROTO_DB_PASSWORD"`
	Name     string `env:"INSTALLPROTO_DB_NAME" env-default:"installproto"`
	SSLMode  string `env:"INSTALLPROTO_DB_SSLMODE" env-default:"disable"`
}

// DSN renders d as a postgres connection string accepted by hostkit/store.Connect.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Config is the process configuration for cmd/installhostd.
type Config struct {
	ListenAddr    string
	ChainID       uint32
	PrivateKeyHex string
	DB            DatabaseConfig
	LogLevel      string
}

// Load builds a Config from the environment, optionally seeded by a .env file
// found under INSTALLPROTO_CONFIG_DIR (default ".").
func Load() (*Config, error) {
	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	dotenvPath := filepath.Join(configDirPath, ".env")
	_ = godotenv.Load(dotenvPath) // missing .env is not fatal outside containers

	listenAddr := os.Getenv("INSTALLPROTO_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8787"
	}

	chainID := uint32(defaultChainID)
	if raw := os.Getenv("INSTALLPROTO_CHAIN_ID"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("cfg: invalid INSTALLPROTO_CHAIN_ID %q: %w", raw, err)
		}
		chainID = uint32(parsed)
	}

	privateKeyHex := os.Getenv("INSTALLPROTO_PRIVATE_KEY")
	if privateKeyHex == "" {
		return nil, fmt.Errorf("cfg: INSTALLPROTO_PRIVATE_KEY is required")
	}

	var dbConf DatabaseConfig
	if err := cleanenv.ReadEnv(&dbConf); err != nil {
		return nil, fmt.Errorf("cfg: read database config: %w", err)
	}

	logLevel := os.Getenv("INSTALLPROTO_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		ListenAddr:    listenAddr,
		ChainID:       chainID,
		PrivateKeyHex: privateKeyHex,
		DB:            dbConf,
		LogLevel:      logLevel,
	}, nil
}
