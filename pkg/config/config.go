package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Recommender providers.
const (
	RecommenderHTTP      = "http"
	RecommenderAnthropic = "anthropic"
	RecommenderKeyword   = "keyword"
)

// Recommender fallback policies.
const (
	FallbackError  = "error"
	FallbackModule = "module"
)

const guardTTLSlack = 5 * time.Second

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Recommender RecommenderConfig
	Assignments AssignmentConfig
	RateLimit   RateLimitConfig
	Stats       StatsConfig
	Cache       CacheConfig
	Certificate CertificateConfig
}

type DatabaseConfig struct {
	// URL, when set, takes precedence over the discrete connection fields.
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectAttempts int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// RecommenderConfig selects and tunes the module recommender.
type RecommenderConfig struct {
	Provider         string
	URL              string
	Timeout          time.Duration
	APIKey           string
	Model            string
	MaxCandidates    int
	FallbackPolicy   string
	FallbackModuleID string
}

// AssignmentConfig governs issue submission and training assignment creation.
type AssignmentConfig struct {
	DueOffset           time.Duration
	SubmissionGuardTTL  time.Duration
	OrchestrationBudget time.Duration
	SystemAssignerID    string
}

// RateLimitConfig throttles issue submissions per client.
type RateLimitConfig struct {
	SubmissionsPerWindow int
	Window               time.Duration
}

// StatsConfig controls module statistics recomputation.
type StatsConfig struct {
	RefreshCron  string
	QueueWorkers int
	QueueRetries int
}

// CertificateConfig signs shareable certificate links. An empty secret falls
// back to the JWT secret.
type CertificateConfig struct {
	Issuer      string
	ShareSecret string
	ShareTTL    time.Duration
}

// CacheConfig toggles Redis backed response caching.
type CacheConfig struct {
	Enabled    bool
	StatsTTL   time.Duration
	ModulesTTL time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		URL:             v.GetString("DATABASE_URL"),
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
		ConnectAttempts: v.GetInt("DB_CONNECT_ATTEMPTS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Enabled:  v.GetBool("REDIS_ENABLED"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:      v.GetString("LOG_LEVEL"),
		Format:     v.GetString("LOG_FORMAT"),
		File:       v.GetString("LOG_FILE"),
		MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
		MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
	}

	cfg.Recommender = RecommenderConfig{
		Provider:         strings.ToLower(v.GetString("RECOMMENDER_PROVIDER")),
		URL:              v.GetString("RECOMMENDER_URL"),
		Timeout:          parseDuration(v.GetString("RECOMMENDER_TIMEOUT"), 20*time.Second),
		APIKey:           v.GetString("ANTHROPIC_API_KEY"),
		Model:            v.GetString("RECOMMENDER_MODEL"),
		MaxCandidates:    v.GetInt("RECOMMENDER_MAX_CANDIDATES"),
		FallbackPolicy:   strings.ToLower(v.GetString("RECOMMENDER_FALLBACK")),
		FallbackModuleID: v.GetString("RECOMMENDER_FALLBACK_MODULE_ID"),
	}
	if cfg.Recommender.FallbackPolicy == FallbackModule && cfg.Recommender.FallbackModuleID == "" {
		return nil, errors.New("RECOMMENDER_FALLBACK_MODULE_ID is required when RECOMMENDER_FALLBACK=module")
	}

	cfg.Assignments = AssignmentConfig{
		DueOffset:           parseDuration(v.GetString("ASSIGNMENT_DUE_OFFSET"), 7*24*time.Hour),
		SubmissionGuardTTL:  parseDuration(v.GetString("SUBMISSION_GUARD_TTL"), 60*time.Second),
		OrchestrationBudget: parseDuration(v.GetString("SUBMISSION_TIMEOUT"), 45*time.Second),
		SystemAssignerID:    v.GetString("ASSIGNMENT_SYSTEM_ASSIGNER"),
	}
	// The submission guard outlives the orchestration budget.
	if minTTL := cfg.Assignments.OrchestrationBudget + guardTTLSlack; cfg.Assignments.SubmissionGuardTTL < minTTL {
		cfg.Assignments.SubmissionGuardTTL = minTTL
	}

	cfg.RateLimit = RateLimitConfig{
		SubmissionsPerWindow: v.GetInt("SUBMISSION_RATE_LIMIT"),
		Window:               parseDuration(v.GetString("SUBMISSION_RATE_WINDOW"), time.Minute),
	}

	cfg.Stats = StatsConfig{
		RefreshCron:  v.GetString("STATS_REFRESH_CRON"),
		QueueWorkers: v.GetInt("STATS_QUEUE_WORKERS"),
		QueueRetries: v.GetInt("STATS_QUEUE_RETRIES"),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("CACHE_ENABLED"),
		StatsTTL:   parseDuration(v.GetString("STATS_CACHE_TTL"), 5*time.Minute),
		ModulesTTL: parseDuration(v.GetString("MODULES_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Certificate = CertificateConfig{
		Issuer:      v.GetString("CERTIFICATE_ISSUER"),
		ShareSecret: v.GetString("CERTIFICATE_SHARE_SECRET"),
		ShareTTL:    parseDuration(v.GetString("CERTIFICATE_SHARE_TTL"), 7*24*time.Hour),
	}
	if cfg.Certificate.ShareSecret == "" {
		cfg.Certificate.ShareSecret = cfg.JWT.Secret
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
	v.SetDefault("DB_NAME", "teacher_training")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DB_CONNECT_ATTEMPTS", 3)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_ENABLED", true)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "teacher-training-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 30)

	v.SetDefault("RECOMMENDER_PROVIDER", RecommenderKeyword)
	v.SetDefault("RECOMMENDER_URL", "http://localhost:5001/api/recommend")
	v.SetDefault("RECOMMENDER_TIMEOUT", "20s")
	v.SetDefault("RECOMMENDER_MODEL", "claude-sonnet-4-5")
	v.SetDefault("RECOMMENDER_MAX_CANDIDATES", 25)
	v.SetDefault("RECOMMENDER_FALLBACK", FallbackError)
	v.SetDefault("RECOMMENDER_FALLBACK_MODULE_ID", "")

	v.SetDefault("ASSIGNMENT_DUE_OFFSET", "168h")
	v.SetDefault("SUBMISSION_GUARD_TTL", "60s")
	v.SetDefault("SUBMISSION_TIMEOUT", "45s")
	v.SetDefault("ASSIGNMENT_SYSTEM_ASSIGNER", "system")

	v.SetDefault("SUBMISSION_RATE_LIMIT", 10)
	v.SetDefault("SUBMISSION_RATE_WINDOW", "1m")

	v.SetDefault("STATS_REFRESH_CRON", "0 2 * * *")
	v.SetDefault("STATS_QUEUE_WORKERS", 2)
	v.SetDefault("STATS_QUEUE_RETRIES", 3)

	v.SetDefault("CERTIFICATE_ISSUER", "Teacher Professional Development Program")
	v.SetDefault("CERTIFICATE_SHARE_TTL", "168h")

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("STATS_CACHE_TTL", "5m")
	v.SetDefault("MODULES_CACHE_TTL", "10m")
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
