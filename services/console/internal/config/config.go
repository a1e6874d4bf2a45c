package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file, overridden by CONSOLE_CONFIG.
const ConfigPath = "config.yaml"

// Session storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Upload backends.
const (
	UploadAPI   = "api"
	UploadMinio = "minio"
)

// ResourceConfig declares one catalog list page.
type ResourceConfig struct {
	Name    string   `yaml:"name"`
	Path    string   `yaml:"path"`
	Label   string   `yaml:"label"`
	Filters []string `yaml:"filters"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port          string `yaml:"port"`
	BindHost      string `yaml:"bindHost"`
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"`
	AllowedOrigin string `yaml:"allowedOrigin"`
	LoginPath     string `yaml:"loginPath"`

	APIBaseURL        string `yaml:"apiBaseURL"`
	APITimeoutSeconds int    `yaml:"apiTimeoutSeconds"`

	PageSize              int    `yaml:"pageSize"`
	SearchDebounce        string `yaml:"searchDebounce"`
	DiscardStaleResponses bool   `yaml:"discardStaleResponses"`
	ToastTTL              string `yaml:"toastTTL"`

	SessionBackend       string `yaml:"sessionBackend"`
	SessionPath          string `yaml:"sessionPath"`
	SessionNamespace     string `yaml:"sessionNamespace"`
	SessionEncryptionKey string `yaml:"sessionEncryptionKey"`
	CheckTokenExpiry     bool   `yaml:"checkTokenExpiry"`
	DatabaseURL          string `yaml:"databaseURL"`
	RedisAddr            string `yaml:"redisAddr"`
	RedisPassword        string `yaml:"redisPassword"`
	RedisPrefix          string `yaml:"redisPrefix"`

	LoginRateLimitPerMinute int `yaml:"loginRateLimitPerMinute"`

	UploadBackend      string `yaml:"uploadBackend"`
	MinioEndpoint      string `yaml:"minioEndpoint"`
	MinioAccessKey     string `yaml:"minioAccessKey"`
	MinioSecretKey     string `yaml:"minioSecretKey"`
	MinioBucket        string `yaml:"minioBucket"`
	MinioUseSSL        bool   `yaml:"minioUseSSL"`
	MinioPublicBaseURL string `yaml:"minioPublicBaseURL"`

	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`

	Resources []ResourceConfig `yaml:"resources"`
}

// Load reads config from path (defaults to config.yaml), applies environment
// overrides and defaults, and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	setString("CONSOLE_PORT", &cfg.Port)
	setString("CONSOLE_LOG_LEVEL", &cfg.LogLevel)
	setString("CONSOLE_LOG_FORMAT", &cfg.LogFormat)
	setString("CONSOLE_ALLOWED_ORIGIN", &cfg.AllowedOrigin)
	setString("CONSOLE_API_BASE_URL", &cfg.APIBaseURL)
	setInt("CONSOLE_API_TIMEOUT_SECONDS", &cfg.APITimeoutSeconds)
	setBool("CONSOLE_DISCARD_STALE_RESPONSES", &cfg.DiscardStaleResponses)
	setString("CONSOLE_SESSION_BACKEND", &cfg.SessionBackend)
	setString("CONSOLE_SESSION_PATH", &cfg.SessionPath)
	setString("CONSOLE_SESSION_ENCRYPTION_KEY", &cfg.SessionEncryptionKey)
	setBool("CONSOLE_CHECK_TOKEN_EXPIRY", &cfg.CheckTokenExpiry)
	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setInt("CONSOLE_LOGIN_RATE_LIMIT_PER_MINUTE", &cfg.LoginRateLimitPerMinute)
	setString("CONSOLE_UPLOAD_BACKEND", &cfg.UploadBackend)
	setString("MINIO_ENDPOINT", &cfg.MinioEndpoint)
	setString("MINIO_ACCESS_KEY", &cfg.MinioAccessKey)
	setString("MINIO_SECRET_KEY", &cfg.MinioSecretKey)
	setString("MINIO_BUCKET", &cfg.MinioBucket)
	setString("MINIO_PUBLIC_BASE_URL", &cfg.MinioPublicBaseURL)
	setString("AMQP_URL", &cfg.AMQPURL)
}

func applyDefaults(cfg *FileConfig) {
	if cfg.BindHost == "" {
		cfg.BindHost = "127.0.0.1"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 10
	}
	if cfg.SessionBackend == "" {
		cfg.SessionBackend = BackendSQLite
	}
	if cfg.SessionBackend == BackendSQLite && cfg.SessionPath == "" {
		cfg.SessionPath = "data/session.db"
	}
	if cfg.UploadBackend == "" {
		cfg.UploadBackend = UploadAPI
	}
	cfg.SessionBackend = strings.ToLower(cfg.SessionBackend)
	cfg.UploadBackend = strings.ToLower(cfg.UploadBackend)
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or CONSOLE_PORT)")
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return errors.New("config: apiBaseURL is required (set in config.yaml or CONSOLE_API_BASE_URL)")
	}
	if cfg.APITimeoutSeconds < 0 {
		return errors.New("config: apiTimeoutSeconds must be >= 0")
	}
	if cfg.PageSize < 1 {
		return errors.New("config: pageSize must be >= 1")
	}
	if !strings.HasPrefix(cfg.LoginPath, "/") {
		return errors.New("config: loginPath must start with /")
	}
	if _, err := ParseDuration("searchDebounce", cfg.SearchDebounce); err != nil {
		return err
	}
	if _, err := ParseDuration("toastTTL", cfg.ToastTTL); err != nil {
		return err
	}
	switch cfg.SessionBackend {
	case BackendSQLite, BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis session backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("config: databaseURL is required for the postgres session backend")
		}
	default:
		return fmt.Errorf("config: unknown sessionBackend %q", cfg.SessionBackend)
	}
	if key := strings.TrimSpace(cfg.SessionEncryptionKey); key != "" && len(key) != 64 {
		return errors.New("config: sessionEncryptionKey must be 64 hex characters")
	}
	switch cfg.UploadBackend {
	case UploadAPI:
	case UploadMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint and minioBucket are required for the minio upload backend")
		}
		if strings.TrimSpace(cfg.MinioPublicBaseURL) == "" {
			return errors.New("config: minioPublicBaseURL is required for the minio upload backend")
		}
	default:
		return fmt.Errorf("config: unknown uploadBackend %q", cfg.UploadBackend)
	}
	if cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: loginRateLimitPerMinute must be >= 0")
	}
	if cfg.LoginRateLimitPerMinute > 0 && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for login rate limiting")
	}
	seen := map[string]bool{"forum": true}
	for _, r := range cfg.Resources {
		if r.Name == "" || r.Path == "" {
			return errors.New("config: every resource needs name and path")
		}
		if seen[r.Name] {
			return fmt.Errorf("config: duplicate resource %q", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// ParseDuration parses an optional duration field. Empty means zero, which
// callers treat as "use the default".
func ParseDuration(field, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", field, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("config: %s must be >= 0", field)
	}
	return dur, nil
}

// APITimeout returns the per-call timeout; zero disables it.
func (c FileConfig) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// Addr is the listen address of the console surface.
func (c FileConfig) Addr() string {
	return c.BindHost + ":" + c.Port
}
