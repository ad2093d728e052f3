// ABOUTME: Server configuration loaded from YAML, .env files and SITEWALK_* environment variables.
// ABOUTME: Defaults apply first, then the file, then the environment; Validate reports every problem at once.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

type ServerConfig struct {
	Port         int `yaml:"port"`
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	TokenTTL       int    `yaml:"token_ttl"` // minutes
	AllowDevTokens bool   `yaml:"allow_dev_tokens"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
}

type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         9000,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Database: DatabaseConfig{
			Path: "./sitewalk.db",
		},
		Auth: AuthConfig{
			TokenTTL:       12 * 60,
			AllowDevTokens: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-5-mini",
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "sitewalk",
			Topic:    "sitewalk/invalidate",
			QoS:      1,
		},
		InfluxDB: InfluxDBConfig{
			URL:    "http://localhost:8086",
			Bucket: "sitewalk",
		},
	}
}

// LoadDotEnv loads .env from the working directory, its parents and the home
// directory. Variables already set in the environment win.
func LoadDotEnv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".env"))
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	num("SITEWALK_PORT", &cfg.Server.Port)
	str("SITEWALK_DB_PATH", &cfg.Database.Path)
	str("SITEWALK_JWT_SECRET", &cfg.Auth.JWTSecret)
	num("SITEWALK_TOKEN_TTL", &cfg.Auth.TokenTTL)
	flag("SITEWALK_ALLOW_DEV_TOKENS", &cfg.Auth.AllowDevTokens)
	str("SITEWALK_LOG_LEVEL", &cfg.Logging.Level)
	str("SITEWALK_LOG_FORMAT", &cfg.Logging.Format)
	str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	str("OPENAI_MODEL", &cfg.OpenAI.Model)
	flag("SITEWALK_MQTT_ENABLED", &cfg.MQTT.Enabled)
	str("SITEWALK_MQTT_BROKER", &cfg.MQTT.Broker)
	str("SITEWALK_MQTT_USERNAME", &cfg.MQTT.Username)
	str("SITEWALK_MQTT_PASSWORD", &cfg.MQTT.Password)
	flag("SITEWALK_INFLUXDB_ENABLED", &cfg.InfluxDB.Enabled)
	str("SITEWALK_INFLUXDB_URL", &cfg.InfluxDB.URL)
	str("SITEWALK_INFLUXDB_TOKEN", &cfg.InfluxDB.Token)
	str("SITEWALK_INFLUXDB_ORG", &cfg.InfluxDB.Org)
	str("SITEWALK_INFLUXDB_BUCKET", &cfg.InfluxDB.Bucket)

	return errors.Join(errs...)
}

const minJWTSecretLength = 32

func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, "database.path is required")
	}

	switch {
	case c.Auth.JWTSecret == "" && !c.Auth.AllowDevTokens:
		errs = append(errs, "auth.jwt_secret is required when dev tokens are disabled (set SITEWALK_JWT_SECRET)")
	case c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretLength:
		errs = append(errs, "auth.jwt_secret must be at least 32 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, "auth.token_ttl must be positive")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, "logging.format must be json or console")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, "mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeout) * time.Second
}

func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}

func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTL) * time.Minute
}
