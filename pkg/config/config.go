package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Scheduling SchedulingConfig
	Timetable  TimetableConfig
	Export     ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig governs the admission core. Timezone fixes the reference
// location used to expand term and holiday dates into instant boundaries.
type SchedulingConfig struct {
	Timezone    string
	LockTimeout time.Duration
}

// TimetableConfig tunes the public timetable cache and its refresh workers.
type TimetableConfig struct {
	Enabled        bool
	CacheTTL       time.Duration
	RefreshWorkers int
	RefreshBuffer  int
	RefreshRetries int
	RefreshBackoff time.Duration
}

// ExportConfig toggles timetable export rendering.
type ExportConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduling = SchedulingConfig{
		Timezone:    v.GetString("SCHEDULING_TIMEZONE"),
		LockTimeout: parseDuration(v.GetString("SCHEDULING_LOCK_TIMEOUT"), 10*time.Second),
	}

	cfg.Timetable = TimetableConfig{
		Enabled:        v.GetBool("ENABLE_TIMETABLE"),
		CacheTTL:       parseDuration(v.GetString("TIMETABLE_CACHE_TTL"), 5*time.Minute),
		RefreshWorkers: v.GetInt("TIMETABLE_REFRESH_WORKERS"),
		RefreshBuffer:  v.GetInt("TIMETABLE_REFRESH_BUFFER"),
		RefreshRetries: v.GetInt("TIMETABLE_REFRESH_RETRIES"),
		RefreshBackoff: parseDuration(v.GetString("TIMETABLE_REFRESH_BACKOFF"), time.Second),
	}

	cfg.Export = ExportConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	if _, err := time.LoadLocation(cfg.Scheduling.Timezone); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULING_TIMEZONE %q: %w", cfg.Scheduling.Timezone, err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "exam_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULING_TIMEZONE", "UTC")
	v.SetDefault("SCHEDULING_LOCK_TIMEOUT", "10s")

	v.SetDefault("ENABLE_TIMETABLE", true)
	v.SetDefault("TIMETABLE_CACHE_TTL", "5m")
	v.SetDefault("TIMETABLE_REFRESH_WORKERS", 1)
	v.SetDefault("TIMETABLE_REFRESH_BUFFER", 8)
	v.SetDefault("TIMETABLE_REFRESH_RETRIES", 3)
	v.SetDefault("TIMETABLE_REFRESH_BACKOFF", "1s")

	v.SetDefault("ENABLE_EXPORTS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
