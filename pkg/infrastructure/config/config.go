package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Lock     LockConfig
	Planning PlanningConfig
}

type AppConfig struct {
	Env string
}

type LoggerConfig struct {
	Mode string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LockConfig struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

type PlanningConfig struct {
	StageTablePath             string
	NettingConcurrency         int
	ExplosionCacheSize         int
	ExplosionMaxDepth          int
	AllowDestructiveRegenerate bool
}

// Load reads configuration from the environment
func Load() *Config {
	return &Config{
		App: AppConfig{
			Env: getEnv("APP_ENV", "dev"),
		},
		Logger: LoggerConfig{
			Mode: getEnv("LOG_MODE", "dev"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			DSN:             getEnv("DB_DSN", "prodplan.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 1),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 1),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Lock: LockConfig{
			TTL:        getEnvDuration("LOCK_TTL", 5*time.Second),
			Retries:    getEnvInt("LOCK_RETRIES", 3),
			RetryDelay: getEnvDuration("LOCK_RETRY_DELAY", 100*time.Millisecond),
		},
		Planning: PlanningConfig{
			StageTablePath:             getEnv("STAGE_TABLE_PATH", ""),
			NettingConcurrency:         getEnvInt("NETTING_CONCURRENCY", 8),
			ExplosionCacheSize:         getEnvInt("EXPLOSION_CACHE_SIZE", 1000),
			ExplosionMaxDepth:          getEnvInt("EXPLOSION_MAX_DEPTH", 64),
			AllowDestructiveRegenerate: getEnvBool("ALLOW_DESTRUCTIVE_REGENERATE", false),
		},
	}
}

// UsesRedisLock reports whether resource locks should be distributed through Redis
func (c *Config) UsesRedisLock() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
