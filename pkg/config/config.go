// Package config loads setlistdb.toml.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"

	"github.com/marshallshelly/setlistdb/pkg/orm"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

//go:embed setlistdb.example.toml
var exampleConf []byte

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "setlistdb.toml"

// Config represents the configuration loaded from a TOML file.
type Config struct {
	Database    DatabaseConfig    `toml:"database"`
	Transaction TransactionConfig `toml:"transaction"`
	Migrations  MigrationsConfig  `toml:"migrations"`
	Log         LogConfig         `toml:"log"`
}

// DatabaseConfig contains connection settings.
type DatabaseConfig struct {
	URL            string        `toml:"url"`
	Host           string        `toml:"host"`
	Port           int           `toml:"port"`
	Name           string        `toml:"name"`
	User           string        `toml:"user"`
	Password       string        `toml:"password"`
	SSLMode        string        `toml:"sslmode"`
	MaxConns       int32         `toml:"max_conns"`
	MinConns       int32         `toml:"min_conns"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
	Breaker        BreakerConfig `toml:"breaker"`
}

// BreakerConfig contains circuit breaker settings.
type BreakerConfig struct {
	Enabled          bool          `toml:"enabled"`
	FailureThreshold uint32        `toml:"failure_threshold"`
	Timeout          time.Duration `toml:"timeout"`
}

// TransactionConfig contains the default transaction options.
type TransactionConfig struct {
	Isolation string        `toml:"isolation"`
	MaxWait   time.Duration `toml:"max_wait"`
	Timeout   time.Duration `toml:"timeout"`
}

// MigrationsConfig contains migration settings.
type MigrationsConfig struct {
	Dir string `toml:"dir"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration of the embedded example file.
func Default() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Load reads path over the defaults and applies environment overrides. A
// missing file at DefaultPath is not an error.
func Load(path string) (*Config, error) {
	config := Default()
	if _, err := toml.DecodeFile(path, config); err != nil {
		if !(path == DefaultPath && errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}
	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv applies DATABASE_URL and SETLISTDB_LOG_LEVEL.
func (c *Config) ApplyEnv() {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	}
	if level := os.Getenv("SETLISTDB_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if _, err := c.Isolation(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json", "logfmt":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	return nil
}

// Isolation parses the transaction isolation level. Empty means the server
// default.
func (c *Config) Isolation() (pgx.TxIsoLevel, error) {
	switch lvl := pgx.TxIsoLevel(strings.ToLower(strings.TrimSpace(c.Transaction.Isolation))); lvl {
	case "", pgx.ReadUncommitted, pgx.ReadCommitted, pgx.RepeatableRead, pgx.Serializable:
		return lvl, nil
	default:
		return "", fmt.Errorf("invalid isolation level %q", c.Transaction.Isolation)
	}
}

// Runtime converts the database section to a runtime.Config.
func (c *Config) Runtime() *runtime.Config {
	breaker := runtime.DefaultBreakerConfig()
	breaker.Enabled = c.Database.Breaker.Enabled
	if c.Database.Breaker.FailureThreshold > 0 {
		breaker.FailureThreshold = c.Database.Breaker.FailureThreshold
	}
	if c.Database.Breaker.Timeout > 0 {
		breaker.Timeout = c.Database.Breaker.Timeout
	}
	return &runtime.Config{
		URL:            c.Database.URL,
		Host:           c.Database.Host,
		Port:           c.Database.Port,
		Database:       c.Database.Name,
		User:           c.Database.User,
		Password:       c.Database.Password,
		SSLMode:        c.Database.SSLMode,
		MaxConns:       c.Database.MaxConns,
		MinConns:       c.Database.MinConns,
		ConnectTimeout: c.Database.ConnectTimeout,
		Breaker:        breaker,
	}
}

// TxOptions returns the configured transaction defaults. Call Validate
// first; an invalid isolation level is ignored here.
func (c *Config) TxOptions() []orm.TxOption {
	var opts []orm.TxOption
	if lvl, err := c.Isolation(); err == nil && lvl != "" {
		opts = append(opts, orm.WithIsolation(lvl))
	}
	if c.Transaction.MaxWait > 0 {
		opts = append(opts, orm.WithMaxWait(c.Transaction.MaxWait))
	}
	if c.Transaction.Timeout > 0 {
		opts = append(opts, orm.WithTimeout(c.Transaction.Timeout))
	}
	return opts
}

// NewLogger builds a logger writing to w. verbose forces debug level.
func (c *Config) NewLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "setlistdb",
	})
	if level, err := log.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	switch c.Log.Format {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	}
	return logger
}

// CreateFile writes the example config to path. It fails if path exists.
func CreateFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
