package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Notification transports for conflict events.
const (
	NotifyLog   = "log"
	NotifyRedis = "redis"
	NotifyAMQP  = "amqp"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config captures configuration values for the venue scheduler service.
type Config struct {
	HTTPPort        int           `yaml:"http_port"`
	Storage         string        `yaml:"storage"`
	SQLiteDSN       string        `yaml:"sqlite_dsn"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	Timezone        string        `yaml:"timezone"`
	Redis           RedisConfig   `yaml:"redis"`
	AMQPURL         string        `yaml:"amqp_url"`
	NotifyTransport string        `yaml:"notify_transport"`
	RebookLockTTL   time.Duration `yaml:"rebook_lock_ttl"`
	RebookLockWait  time.Duration `yaml:"rebook_lock_wait"`

	// Location is resolved from Timezone by Load.
	Location *time.Location `yaml:"-"`
}

// RedisConfig locates the optional Redis server used for locking and pub/sub.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		HTTPPort:        8080,
		Storage:         StorageSQLite,
		SQLiteDSN:       "venue-scheduler.db",
		LogLevel:        "info",
		LogFormat:       "json",
		Timezone:        "UTC",
		NotifyTransport: NotifyLog,
		RebookLockTTL:   10 * time.Second,
		RebookLockWait:  3 * time.Second,
		Location:        time.UTC,
	}
}

// Load builds the configuration from, in increasing precedence: defaults, the
// YAML file named by SCHEDULER_CONFIG_FILE, the dotenv file (SCHEDULER_ENV_FILE,
// default ".env") and the process environment. Every invalid value is reported
// in a single error.
func Load() (Config, error) {
	dotenv, err := readDotenv()
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(dotenv[key])
	}

	cfg := Default()
	if path := lookup("SCHEDULER_CONFIG_FILE"); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	var invalid []string
	setString := func(key string, target *string) {
		if value := lookup(key); value != "" {
			*target = value
		}
	}
	setInt := func(key string, target *int, valid func(int) bool) {
		value := lookup(key)
		if value == "" {
			return
		}
		parsed, err := strconv.Atoi(value)
		if err != nil || !valid(parsed) {
			invalid = append(invalid, key)
			return
		}
		*target = parsed
	}
	setDuration := func(key string, target *time.Duration) {
		value := lookup(key)
		if value == "" {
			return
		}
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			invalid = append(invalid, key)
			return
		}
		*target = parsed
	}

	setInt("SCHEDULER_HTTP_PORT", &cfg.HTTPPort, func(v int) bool { return v > 0 && v < 65536 })
	setString("SCHEDULER_STORAGE", &cfg.Storage)
	setString("SCHEDULER_SQLITE_DSN", &cfg.SQLiteDSN)
	setString("SCHEDULER_LOG_LEVEL", &cfg.LogLevel)
	setString("SCHEDULER_LOG_FORMAT", &cfg.LogFormat)
	setString("SCHEDULER_TIMEZONE", &cfg.Timezone)
	setString("SCHEDULER_REDIS_ADDR", &cfg.Redis.Addr)
	setString("SCHEDULER_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("SCHEDULER_REDIS_DB", &cfg.Redis.DB, func(v int) bool { return v >= 0 })
	setString("SCHEDULER_AMQP_URL", &cfg.AMQPURL)
	setString("SCHEDULER_NOTIFY_TRANSPORT", &cfg.NotifyTransport)
	setDuration("SCHEDULER_REBOOK_LOCK_TTL", &cfg.RebookLockTTL)
	setDuration("SCHEDULER_REBOOK_LOCK_WAIT", &cfg.RebookLockWait)

	invalid = append(invalid, cfg.validate()...)
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// validate normalises enumerations and resolves the time zone, returning the
// keys of the values it rejected.
func (c *Config) validate() []string {
	var invalid []string

	c.Storage = strings.ToLower(c.Storage)
	if c.Storage != StorageSQLite && c.Storage != StorageMemory {
		invalid = append(invalid, "SCHEDULER_STORAGE")
	}
	if c.Storage == StorageSQLite && strings.TrimSpace(c.SQLiteDSN) == "" {
		invalid = append(invalid, "SCHEDULER_SQLITE_DSN")
	}

	c.LogLevel = strings.ToLower(c.LogLevel)
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
	}
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat != "json" && c.LogFormat != "text" {
		invalid = append(invalid, "SCHEDULER_LOG_FORMAT")
	}

	location, err := time.LoadLocation(c.Timezone)
	if err != nil {
		invalid = append(invalid, "SCHEDULER_TIMEZONE")
	} else {
		c.Location = location
	}

	c.NotifyTransport = strings.ToLower(c.NotifyTransport)
	switch c.NotifyTransport {
	case NotifyLog:
	case NotifyRedis:
		if !c.Redis.Enabled() {
			invalid = append(invalid, "SCHEDULER_REDIS_ADDR")
		}
	case NotifyAMQP:
		if strings.TrimSpace(c.AMQPURL) == "" {
			invalid = append(invalid, "SCHEDULER_AMQP_URL")
		}
	default:
		invalid = append(invalid, "SCHEDULER_NOTIFY_TRANSPORT")
	}

	if c.HTTPPort <= 0 || c.HTTPPort >= 65536 {
		invalid = appendOnce(invalid, "SCHEDULER_HTTP_PORT")
	}
	if c.RebookLockTTL <= 0 {
		invalid = appendOnce(invalid, "SCHEDULER_REBOOK_LOCK_TTL")
	}
	if c.RebookLockWait <= 0 {
		invalid = appendOnce(invalid, "SCHEDULER_REBOOK_LOCK_WAIT")
	}
	return invalid
}

func appendOnce(keys []string, key string) []string {
	for _, existing := range keys {
		if existing == key {
			return keys
		}
	}
	return append(keys, key)
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// readDotenv reads the dotenv file without touching the process environment.
// The default ".env" is optional; an explicitly named file must exist.
func readDotenv() (map[string]string, error) {
	path, explicit := os.LookupEnv("SCHEDULER_ENV_FILE")
	if !explicit || strings.TrimSpace(path) == "" {
		path, explicit = ".env", false
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return values, nil
}
