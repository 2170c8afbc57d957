package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rpattn/rowql/internal/db"
)

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr           string        `validate:"required"`
	ReadTimeout    time.Duration `validate:"gte=0"`
	WriteTimeout   time.Duration `validate:"gte=0"`
	AllowedOrigins []string
}

// DatabaseConfig selects and configures the Postgres store
type DatabaseConfig struct {
	Enabled bool
	db.Config
}

// SeedConfig points at the YAML catalog loaded into the in-memory store
type SeedConfig struct {
	Path string
}

// Config is the full application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Seed     SeedConfig
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{Config: db.DefaultConfig()},
	}
}

// Load reads .env, config.yaml from configPath and ROWQL_* environment
// overrides, in increasing precedence.
func Load(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix("ROWQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // ROWQL_DATABASE_HOST, ROWQL_SERVER_ADDR, ...

	for _, key := range []string{
		"server.addr", "server.read_timeout", "server.write_timeout", "server.allowed_origins",
		"database.enabled", "database.host", "database.port", "database.user", "database.password",
		"database.dbname", "database.sslmode", "database.max_conns",
		"seed.path",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		log.Println("[CONFIG] no config.yaml found, using defaults and env vars")
	} else {
		log.Printf("[CONFIG] loaded %s", v.ConfigFileUsed())
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.read_timeout") {
		cfg.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	}
	if v.IsSet("server.write_timeout") {
		cfg.Server.WriteTimeout = v.GetDuration("server.write_timeout")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("database.enabled") {
		cfg.Database.Enabled = v.GetBool("database.enabled")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("database.max_conns") {
		cfg.Database.MaxConns = v.GetInt32("database.max_conns")
	}
	if v.IsSet("seed.path") {
		cfg.Seed.Path = v.GetString("seed.path")
	}

	if err := validator.New().Struct(cfg.Server); err != nil {
		return Config{}, fmt.Errorf("invalid server config: %w", err)
	}
	return cfg, nil
}
