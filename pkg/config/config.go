package config

import (
	"errors"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Optimizer OptimizerConfig
	Runs      RunsConfig
	Reports   ReportsConfig
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

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// OptimizerConfig carries the genetic-algorithm tuning applied to a run when
// the request leaves a knob unset. A run request may override any of these
// within the validated ranges.
type OptimizerConfig struct {
	Partitions        int
	MutationRate      float64
	PopulationSize    int
	Eras              int
	GenerationsPerEra int
	MaxGenerations    int
	TimeLimit         time.Duration
	HalfClassMax      int
	QuarterClassMax   int
}

// RunsConfig governs background execution of optimization runs.
type RunsConfig struct {
	WorkerConcurrency int
	QueueBuffer       int
	ProgressTTL       time.Duration
}

// ReportsConfig governs the on-disk archive of rendered run reports and the
// signed links that grant access to them.
type ReportsConfig struct {
	Dir             string
	SignedURLSecret string
	SignedURLTTL    time.Duration
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

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Optimizer = OptimizerConfig{
		Partitions:        v.GetInt("OPTIMIZER_PARTITIONS"),
		MutationRate:      v.GetFloat64("OPTIMIZER_MUTATION_RATE"),
		PopulationSize:    v.GetInt("OPTIMIZER_POPULATION_SIZE"),
		Eras:              v.GetInt("OPTIMIZER_ERAS"),
		GenerationsPerEra: v.GetInt("OPTIMIZER_GENERATIONS_PER_ERA"),
		MaxGenerations:    v.GetInt("OPTIMIZER_MAX_GENERATIONS"),
		TimeLimit:         parseDuration(v.GetString("OPTIMIZER_TIME_LIMIT"), 8*time.Hour),
		HalfClassMax:      v.GetInt("OPTIMIZER_HALF_CLASS_MAX"),
		QuarterClassMax:   v.GetInt("OPTIMIZER_QUARTER_CLASS_MAX"),
	}

	cfg.Runs = RunsConfig{
		WorkerConcurrency: v.GetInt("RUNS_WORKER_CONCURRENCY"),
		QueueBuffer:       v.GetInt("RUNS_QUEUE_BUFFER"),
		ProgressTTL:       parseDuration(v.GetString("RUNS_PROGRESS_TTL"), 24*time.Hour),
	}

	cfg.Reports = ReportsConfig{
		Dir:             v.GetString("REPORTS_DIR"),
		SignedURLSecret: v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
	}
	if cfg.Reports.SignedURLSecret == "" {
		cfg.Reports.SignedURLSecret = cfg.JWT.Secret
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
	v.SetDefault("DB_NAME", "partition_optimizer")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "partition-optimizer")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// A/B/C/D partition with 9 students per letter group and 15 per paired
	// group, capped at an eight-hour search.
	v.SetDefault("OPTIMIZER_PARTITIONS", 4)
	v.SetDefault("OPTIMIZER_MUTATION_RATE", 0.015)
	v.SetDefault("OPTIMIZER_POPULATION_SIZE", 200)
	v.SetDefault("OPTIMIZER_ERAS", 4)
	v.SetDefault("OPTIMIZER_GENERATIONS_PER_ERA", 50)
	v.SetDefault("OPTIMIZER_MAX_GENERATIONS", 100000)
	v.SetDefault("OPTIMIZER_TIME_LIMIT", "8h")
	v.SetDefault("OPTIMIZER_HALF_CLASS_MAX", 15)
	v.SetDefault("OPTIMIZER_QUARTER_CLASS_MAX", 9)

	v.SetDefault("RUNS_WORKER_CONCURRENCY", 1)
	v.SetDefault("RUNS_QUEUE_BUFFER", 8)
	v.SetDefault("RUNS_PROGRESS_TTL", "24h")

	v.SetDefault("REPORTS_DIR", "./reports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
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
