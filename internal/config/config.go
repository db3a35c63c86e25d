package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CS_"

// DefaultPath is read when no path is given; a missing default file is not
// an error.
const DefaultPath = "config.yaml"

var (
	ErrInvalidServerConfig   = errors.New("invalid server config")
	ErrInvalidDatabaseConfig = errors.New("invalid database config")
	ErrInvalidAIConfig       = errors.New("invalid ai config")
	ErrInvalidMinioConfig    = errors.New("invalid minio config")
)

type Config struct {
	Server   Server   `yaml:"server" envPrefix:"SERVER_"`
	Log      Log      `yaml:"log" envPrefix:"LOG_"`
	Database Database `yaml:"database" envPrefix:"DATABASE_"`
	AI       AI       `yaml:"ai" envPrefix:"AI_"`
	Minio    Minio    `yaml:"minio" envPrefix:"MINIO_"`
	Security Security `yaml:"security" envPrefix:"SECURITY_"`
	Metrics  Metrics  `yaml:"metrics" envPrefix:"METRICS_"`
}

type Server struct {
	Port             int           `yaml:"port" env:"PORT"`
	ReadTimeout      time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	IdleTimeout      time.Duration `yaml:"idleTimeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout  time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
	AccessTokens     []string      `yaml:"accessTokens" env:"ACCESS_TOKENS"`
	CORSOrigins      []string      `yaml:"corsOrigins" env:"CORS_ORIGINS"`
	MaxContractBytes int           `yaml:"maxContractBytes" env:"MAX_CONTRACT_BYTES"`
	RateLimit        RateLimit     `yaml:"rateLimit" envPrefix:"RATE_LIMIT_"`
}

type RateLimit struct {
	Capacity        int     `yaml:"capacity" env:"CAPACITY"`
	RefillPerSecond float64 `yaml:"refillPerSecond" env:"REFILL_PER_SECOND"`
}

type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type Database struct {
	Driver   string `yaml:"driver" env:"DRIVER"`
	DSN      string `yaml:"dsn" env:"DSN"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"`
}

type AI struct {
	Provider string        `yaml:"provider" env:"PROVIDER"`
	Model    string        `yaml:"model" env:"MODEL"`
	BaseURL  string        `yaml:"baseURL" env:"BASE_URL"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Retries  int           `yaml:"retries" env:"RETRIES"`
}

type Minio struct {
	Enabled    bool          `yaml:"enabled" env:"ENABLED"`
	Endpoint   string        `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey  string        `yaml:"accessKey" env:"ACCESS_KEY"`
	SecretKey  string        `yaml:"secretKey" env:"SECRET_KEY"`
	BucketName string        `yaml:"bucketName" env:"BUCKET_NAME"`
	Region     string        `yaml:"region" env:"REGION"`
	UseSSL     bool          `yaml:"useSSL" env:"USE_SSL"`
	PresignTTL time.Duration `yaml:"presignTTL" env:"PRESIGN_TTL"`
}

type Security struct {
	SealKey string `yaml:"sealKey" env:"SEAL_KEY"`
}

type Metrics struct {
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// Defaults returns the values used for anything left unset.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     150 * time.Second,
			IdleTimeout:      60 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			MaxContractBytes: 200_000,
			RateLimit:        RateLimit{Capacity: 30, RefillPerSecond: 1},
		},
		Log:      Log{Level: "info", Format: "json"},
		Database: Database{Driver: "sqlite3"},
		AI:       AI{Provider: "anthropic", Timeout: 120 * time.Second, Retries: 1},
		Minio:    Minio{BucketName: "contract-shield-reports", Region: "us-east-1", PresignTTL: 24 * time.Hour},
		Metrics:  Metrics{Namespace: "contract_shield"},
	}
}

// Load reads .env, then the YAML file at path, then CS_ environment
// variables. Environment wins over the file, the file wins over Defaults.
// An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	fileCfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("error getting env configs: %w", err)
	}

	defaults := Defaults()
	for _, src := range []*Config{fileCfg, &defaults} {
		if err := mergo.Merge(cfg, src); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidServerConfig, c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite3", "mysql", "postgres":
	default:
		return fmt.Errorf("%w: unsupported driver %q", ErrInvalidDatabaseConfig, c.Database.Driver)
	}
	if c.DSN() == "" {
		return fmt.Errorf("%w: dsn or host is required", ErrInvalidDatabaseConfig)
	}
	switch c.AI.Provider {
	case "anthropic", "openai", "gemini":
	default:
		return fmt.Errorf("%w: unsupported provider %q", ErrInvalidAIConfig, c.AI.Provider)
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		return fmt.Errorf("%w: endpoint and bucketName are required", ErrInvalidMinioConfig)
	}
	return nil
}

// DefaultSQLitePath is the database file used when sqlite3 has no DSN.
const DefaultSQLitePath = "contract-shield.db"

// DSN returns the configured DSN, or builds one from the host fields for
// mysql and postgres.
func (c *Config) DSN() string {
	d := c.Database
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver == "sqlite3" {
		return DefaultSQLitePath
	}
	if d.Host == "" {
		return ""
	}
	switch d.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.Name)
	case "postgres":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			d.User, d.Password, d.Host, d.Port, d.Name)
	}
	return ""
}
