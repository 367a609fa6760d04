// Package config loads server settings.
//
// Sources, lowest precedence first:
//  1. built-in defaults
//  2. a YAML file named by CONFIG_FILE
//  3. environment variables (a .env file in the working directory is loaded
//     into the environment first, without overriding variables already set)
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sakif/cardbox/internal/auth"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Port     int    `yaml:"port"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat   string   `yaml:"log_format"`
	CORSOrigins []string `yaml:"cors_origins"`
	// PublicBaseURL prefixes image URLs; empty gives root-relative URLs.
	PublicBaseURL string `yaml:"public_base_url"`

	StorageDriver string `yaml:"storage_driver"`
	UploadDir     string `yaml:"upload_dir"`
	MaxImageBytes int64  `yaml:"max_image_bytes"`
	S3            S3     `yaml:"s3"`

	// Auth is enabled when both are set.
	JWTSecret         string `yaml:"jwt_secret"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
	SecureCookies     bool   `yaml:"secure_cookies"`
}

type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Port:          8080,
		DBPath:        "data/cardbox.db",
		LogLevel:      "info",
		LogFormat:     "text",
		CORSOrigins:   []string{"http://localhost:3000"},
		StorageDriver: StorageLocal,
		UploadDir:     "data/uploads",
		MaxImageBytes: 10 << 20,
		S3:            S3{Region: "us-east-1"},
	}
}

// Load reads .env, the optional YAML file and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.mergeEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	str("DB_PATH", &c.DBPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("PUBLIC_BASE_URL", &c.PublicBaseURL)
	str("STORAGE_DRIVER", &c.StorageDriver)
	str("UPLOAD_DIR", &c.UploadDir)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_REGION", &c.S3.Region)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)
	str("JWT_SECRET", &c.JWTSecret)
	str("ADMIN_PASSWORD_HASH", &c.AdminPasswordHash)

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q", v)
		}
		c.Port = port
	}
	if v := getenv("MAX_IMAGE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: invalid MAX_IMAGE_BYTES %q", v)
		}
		c.MaxImageBytes = n
	}
	if v := getenv("SECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid SECURE_COOKIES %q", v)
		}
		c.SecureCookies = b
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("max_image_bytes must be positive"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q is not text or json", c.LogFormat))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	switch c.StorageDriver {
	case StorageLocal:
		if c.UploadDir == "" {
			errs = append(errs, errors.New("upload_dir is required for local storage"))
		}
	case StorageS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for s3 storage"))
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			errs = append(errs, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.StorageDriver))
	}

	if (c.JWTSecret == "") != (c.AdminPasswordHash == "") {
		errs = append(errs, errors.New("JWT_SECRET and ADMIN_PASSWORD_HASH must be set together"))
	}
	if c.AdminPasswordHash != "" && !auth.ValidHash(c.AdminPasswordHash) {
		errs = append(errs, errors.New("ADMIN_PASSWORD_HASH is not a bcrypt hash"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// AuthEnabled reports whether login and protected routes are active.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != "" && c.AdminPasswordHash != ""
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
