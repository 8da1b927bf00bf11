// Package config loads service configuration from the environment via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups application configuration.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	JWT    JWTConfig
	Worker WorkerConfig
	Audit  AuditConfig
}

// AppConfig holds general settings.
type AppConfig struct {
	Env      string // development, staging, production
	Port     string
	LogLevel string
}

// IsDevelopment reports whether pretty logging should be used.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// DBConfig holds PostgreSQL settings.
type DBConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// RedisConfig holds settings for the writer lock and the job queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// LockTTL bounds how long a per-key stock lock can be held.
	LockTTL time.Duration
	// LockWait is how long a writer waits for a held key.
	LockWait time.Duration
}

// JWTConfig holds bearer token validation settings.
type JWTConfig struct {
	Secret string
	Issuer string
	// WriteRoles may submit movements; empty allows any valid token.
	WriteRoles []string
}

// WorkerConfig holds asynq worker settings.
type WorkerConfig struct {
	Concurrency int
	Queue       string
}

// AuditConfig holds audit snapshot settings.
type AuditConfig struct {
	// CompressThreshold is the payload size in bytes above which snapshots are zstd-compressed.
	CompressThreshold int
}

// Load reads configuration from env vars (and optionally .env / config.env).
// Env vars take precedence.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // optional

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Port:     v.GetString("APP_PORT"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		DB: DBConfig{
			URL:      v.GetString("DATABASE_URL"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
			MinConns: v.GetInt32("DB_MIN_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			LockTTL:  v.GetDuration("LOCK_TTL"),
			LockWait: v.GetDuration("LOCK_WAIT"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Issuer:     v.GetString("JWT_ISSUER"),
			WriteRoles: splitList(v.GetString("JWT_WRITE_ROLES")),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("WORKER_CONCURRENCY"),
			Queue:       v.GetString("WORKER_QUEUE"),
		},
		Audit: AuditConfig{
			CompressThreshold: v.GetInt("AUDIT_COMPRESS_THRESHOLD"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", "30s")
	v.SetDefault("LOCK_WAIT", "5s")
	v.SetDefault("JWT_ISSUER", "kardex")
	v.SetDefault("WORKER_CONCURRENCY", 1)
	v.SetDefault("WORKER_QUEUE", "movements")
	v.SetDefault("AUDIT_COMPRESS_THRESHOLD", 10*1024)
}

// splitList parses a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive, got %s", c.Redis.LockTTL)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	return nil
}
