package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Env        string
	AppDataDir string

	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	LLM        LLMConfig
	Generation GenerationConfig
	Validation ValidationConfig
	Bridge     BridgeConfig
	Exports    ExportsConfig

	CleanOnShutdown bool
}

type DatabaseConfig struct {
	Driver        string
	Path          string
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	BusyTimeout   time.Duration
	BulkThreshold int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	BufferSize int
}

// LLMConfig configures the language model used by the filter pipeline.
type LLMConfig struct {
	APIKey         string
	APIURL         string
	APIVersion     string
	Model          string
	MaxTokens      int
	AttemptTimeout time.Duration
	ConnectTimeout time.Duration
}

// GenerationConfig bounds the schedule search.
type GenerationConfig struct {
	BatchSize             int
	MaxSchedules          int
	WarnThreshold         int
	MaxCoursesPerSemester int
}

// ValidationConfig sizes the ingestion conflict-check timeout.
type ValidationConfig struct {
	BaseTimeout time.Duration
	PerCourse   time.Duration
	MaxTimeout  time.Duration
	Grace       time.Duration
}

// BridgeConfig controls the loopback HTTP bridge used by the UI.
type BridgeConfig struct {
	Enabled        bool
	Addr           string
	TokenTTL       time.Duration
	Secret         string
	AllowedOrigins []string
}

// ExportsConfig sets where SAVE_SCHEDULE / PRINT_SCHEDULE write relative paths.
type ExportsConfig struct {
	Dir string
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
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.AppDataDir = v.GetString("APP_DATA_DIR")
	if cfg.AppDataDir == "" {
		cfg.AppDataDir = defaultAppDataDir()
	}
	cfg.CleanOnShutdown = v.GetBool("CLEAN_ON_SHUTDOWN")

	cfg.Database = DatabaseConfig{
		Driver:        strings.ToLower(v.GetString("DB_DRIVER")),
		Path:          v.GetString("DB_PATH"),
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		BusyTimeout:   parseDuration(v.GetString("DB_BUSY_TIMEOUT"), 5*time.Second),
		BulkThreshold: v.GetInt("DB_BULK_THRESHOLD"),
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.AppDataDir, "schedules.db")
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		CacheTTL: parseDuration(v.GetString("CACHE_TTL"), 30*time.Minute),
	}

	cfg.Log = LogConfig{
		Level:      v.GetString("LOG_LEVEL"),
		Format:     v.GetString("LOG_FORMAT"),
		File:       v.GetString("LOG_FILE"),
		MaxSizeMB:  v.GetInt("LOG_FILE_MAX_SIZE_MB"),
		MaxBackups: v.GetInt("LOG_FILE_MAX_BACKUPS"),
		MaxAgeDays: v.GetInt("LOG_FILE_MAX_AGE_DAYS"),
		BufferSize: v.GetInt("LOG_BUFFER_SIZE"),
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.AppDataDir, "logs", "planner.log")
	}

	cfg.LLM = LLMConfig{
		APIKey:         v.GetString("ANTHROPIC_API_KEY"),
		APIURL:         v.GetString("LLM_API_URL"),
		APIVersion:     v.GetString("LLM_API_VERSION"),
		Model:          v.GetString("LLM_MODEL"),
		MaxTokens:      v.GetInt("LLM_MAX_TOKENS"),
		AttemptTimeout: parseDuration(v.GetString("LLM_ATTEMPT_TIMEOUT"), 60*time.Second),
		ConnectTimeout: parseDuration(v.GetString("LLM_CONNECT_TIMEOUT"), 30*time.Second),
	}

	cfg.Generation = GenerationConfig{
		BatchSize:             v.GetInt("GENERATION_BATCH_SIZE"),
		MaxSchedules:          v.GetInt("GENERATION_MAX_SCHEDULES"),
		WarnThreshold:         v.GetInt("GENERATION_WARN_THRESHOLD"),
		MaxCoursesPerSemester: v.GetInt("MAX_COURSES_PER_SEMESTER"),
	}

	cfg.Validation = ValidationConfig{
		BaseTimeout: parseDuration(v.GetString("VALIDATION_BASE_TIMEOUT"), 10*time.Second),
		PerCourse:   parseDuration(v.GetString("VALIDATION_PER_COURSE"), 100*time.Millisecond),
		MaxTimeout:  parseDuration(v.GetString("VALIDATION_MAX_TIMEOUT"), 60*time.Second),
		Grace:       parseDuration(v.GetString("VALIDATION_GRACE"), 5*time.Second),
	}

	cfg.Bridge = BridgeConfig{
		Enabled:  v.GetBool("BRIDGE_ENABLED"),
		Addr:     v.GetString("BRIDGE_ADDR"),
		TokenTTL: parseDuration(v.GetString("BRIDGE_TOKEN_TTL"), 12*time.Hour),
		Secret:   v.GetString("BRIDGE_SECRET"),
	}
	cfg.Bridge.AllowedOrigins = splitAndTrim(v.GetString("BRIDGE_ALLOWED_ORIGINS"))

	cfg.Exports = ExportsConfig{Dir: v.GetString("EXPORTS_DIR")}
	if cfg.Exports.Dir == "" {
		cfg.Exports.Dir = filepath.Join(cfg.AppDataDir, "exports")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("APP_DATA_DIR", "")
	v.SetDefault("CLEAN_ON_SHUTDOWN", true)

	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DB_PATH", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_planner")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_BUSY_TIMEOUT", "5s")
	v.SetDefault("DB_BULK_THRESHOLD", 500)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "30m")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_FILE_MAX_SIZE_MB", 20)
	v.SetDefault("LOG_FILE_MAX_BACKUPS", 3)
	v.SetDefault("LOG_FILE_MAX_AGE_DAYS", 28)
	v.SetDefault("LOG_BUFFER_SIZE", 500)

	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("LLM_API_URL", "https://api.anthropic.com/v1/messages")
	v.SetDefault("LLM_API_VERSION", "2023-06-01")
	v.SetDefault("LLM_MODEL", "claude-3-5-haiku-latest")
	v.SetDefault("LLM_MAX_TOKENS", 1024)
	v.SetDefault("LLM_ATTEMPT_TIMEOUT", "60s")
	v.SetDefault("LLM_CONNECT_TIMEOUT", "30s")

	v.SetDefault("GENERATION_BATCH_SIZE", 100)
	v.SetDefault("GENERATION_MAX_SCHEDULES", 50000)
	v.SetDefault("GENERATION_WARN_THRESHOLD", 100000)
	v.SetDefault("MAX_COURSES_PER_SEMESTER", 8)

	v.SetDefault("VALIDATION_BASE_TIMEOUT", "10s")
	v.SetDefault("VALIDATION_PER_COURSE", "100ms")
	v.SetDefault("VALIDATION_MAX_TIMEOUT", "60s")
	v.SetDefault("VALIDATION_GRACE", "5s")

	v.SetDefault("BRIDGE_ENABLED", true)
	v.SetDefault("BRIDGE_ADDR", "127.0.0.1:8787")
	v.SetDefault("BRIDGE_TOKEN_TTL", "12h")
	v.SetDefault("BRIDGE_SECRET", "")
	v.SetDefault("BRIDGE_ALLOWED_ORIGINS", "")

	v.SetDefault("EXPORTS_DIR", "")
}

func defaultAppDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = "."
	}
	return filepath.Join(base, "course-planner")
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

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
