// Package config loads fintrack settings from an optional YAML file and FINTRACK_* environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/govalues/money"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. FINTRACK_DATABASE_DRIVER.
const EnvPrefix = "FINTRACK"

// Config is the resolved application configuration.
type Config struct {
	Server   Server
	Database Database
	Log      Log
	Auth     Auth
	Currency string
	DevSeed  bool
}

type Server struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Database struct {
	Driver string // memory, sqlite or postgres
	URL    string
	Path   string
}

type Log struct {
	Level  string
	Format string
}

type Auth struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
	// SecretGenerated is set when no secret was configured and a random one was made for this process.
	SecretGenerated bool
}

// New returns a viper instance with defaults and environment binding applied.
// Callers may bind flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.url", "")
	v.SetDefault("database.path", "~/.local/share/fintrack/fintrack.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "fintrack")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("ledger.currency", "IDR")
	v.SetDefault("dev_seed", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (or ./fintrack.yaml when file is empty and it exists) into v and resolves a Config.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("fintrack")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Server: Server{
			Addr:         v.GetString("server.addr"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Database: Database{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
			URL:    strings.TrimSpace(v.GetString("database.url")),
			Path:   ExpandPath(v.GetString("database.path")),
		},
		Log: Log{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Auth: Auth{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
		},
		Currency: strings.ToUpper(strings.TrimSpace(v.GetString("ledger.currency"))),
		DevSeed:  v.GetBool("dev_seed"),
	}
	if cfg.Auth.JWTSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil { return Config{}, fmt.Errorf("generate jwt secret: %w", err) }
		cfg.Auth.JWTSecret = hex.EncodeToString(b)
		cfg.Auth.SecretGenerated = true
	}
	if err := cfg.Validate(); err != nil { return Config{}, err }
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Database.URL == "" { return errors.New("config: database.url is required for postgres") }
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" { return errors.New("config: database.path is required for sqlite") }
	if len(c.Auth.JWTSecret) < 16 { return errors.New("config: auth.jwt_secret must be at least 16 bytes") }
	if c.Auth.TokenTTL <= 0 { return errors.New("config: auth.token_ttl must be positive") }
	if _, err := money.ParseCurr(c.Currency); err != nil || len(c.Currency) != 3 {
		return fmt.Errorf("config: ledger.currency %q is not an ISO 4217 code", c.Currency)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// ExpandPath expands a leading ~ and $VAR references in a file path.
func ExpandPath(path string) string {
	if path == "" || path == ":memory:" { return path }
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil { path = filepath.Join(home, strings.TrimPrefix(path[1:], "/")) }
	}
	return os.ExpandEnv(path)
}
