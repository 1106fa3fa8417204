package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	S3        S3Config
	Upload    UploadConfig
	Extractor ExtractorConfig
	Ingest    IngestConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Queue     QueueConfig
	Notify    NotifyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string. An explicit URL wins over the individual fields.
func (d *DBConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds object storage settings for original documents.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// UploadConfig holds upload validation limits.
type UploadConfig struct {
	MaxFileSizeMB int64    `mapstructure:"max_file_size_mb"`
	Extensions    []string `mapstructure:"extensions"`
	MaxPDFPages   int      `mapstructure:"max_pdf_pages"`
}

// MaxBytes returns the upload size limit in bytes.
func (u *UploadConfig) MaxBytes() int64 {
	return u.MaxFileSizeMB << 20
}

// ExtractorProviderConfig holds settings for a single extraction provider.
type ExtractorProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// ExtractorConfig holds the document extraction settings.
type ExtractorConfig struct {
	Primary   ExtractorProviderConfig `mapstructure:"primary"`
	Secondary ExtractorProviderConfig `mapstructure:"secondary"`

	// Language selects the prompt variant: "en" or "multi".
	Language string `mapstructure:"language"`
	// ProcessingTimeoutSecs bounds a whole extraction attempt, fallbacks included.
	ProcessingTimeoutSecs int `mapstructure:"processing_timeout_secs"`
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (e *ExtractorConfig) SecondaryConfig() *ExtractorProviderConfig {
	if e.Secondary.Provider != "" {
		return &e.Secondary
	}
	return nil
}

// ProcessingTimeout returns the processing timeout as a duration.
func (e *ExtractorConfig) ProcessingTimeout() time.Duration {
	return time.Duration(e.ProcessingTimeoutSecs) * time.Second
}

// IngestConfig holds normalization settings.
type IngestConfig struct {
	Tolerance            string `mapstructure:"tolerance"`
	RoundNumberThreshold string `mapstructure:"round_number_threshold"`
	DefaultCurrency      string `mapstructure:"default_currency"`
}

// AuthConfig holds API key settings.
type AuthConfig struct {
	StaticAPIKeys []string `mapstructure:"static_api_keys"`
}

// RateLimitConfig holds the per-key token bucket for the extract route.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// QueueConfig holds extraction queue worker settings.
type QueueConfig struct {
	PollIntervalSecs int `mapstructure:"poll_interval_secs"`
	MaxAttempts      int `mapstructure:"max_attempts"`
	Concurrency      int `mapstructure:"concurrency"`
}

// NotifyConfig holds reviewer alert settings.
type NotifyConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	FromName    string   `mapstructure:"from_name"`
	Recipients  []string `mapstructure:"recipients"`
	MinScore    float64  `mapstructure:"min_score"`
	BaseURL     string   `mapstructure:"base_url"`
}

// Load reads configuration from environment variables with the INVOICELENS_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INVOICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "330s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.url", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "invoicelens")
	v.SetDefault("db.password", "invoicelens_secret")
	v.SetDefault("db.name", "invoicelens")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "invoicelens-uploads")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Upload defaults
	v.SetDefault("upload.max_file_size_mb", 16)
	v.SetDefault("upload.extensions", "png,jpg,jpeg,tiff,bmp,pdf")
	v.SetDefault("upload.max_pdf_pages", 20)

	// Extractor defaults
	v.SetDefault("extractor.primary.provider", "gemini")
	v.SetDefault("extractor.primary.api_key", "")
	v.SetDefault("extractor.primary.default_model", "gemini-1.5-flash")
	v.SetDefault("extractor.primary.timeout_secs", 120)
	v.SetDefault("extractor.secondary.provider", "")
	v.SetDefault("extractor.secondary.api_key", "")
	v.SetDefault("extractor.secondary.default_model", "")
	v.SetDefault("extractor.secondary.timeout_secs", 120)
	v.SetDefault("extractor.language", "en")
	v.SetDefault("extractor.processing_timeout_secs", 300)

	// Ingest defaults
	v.SetDefault("ingest.tolerance", "0.01")
	v.SetDefault("ingest.round_number_threshold", "1000")
	v.SetDefault("ingest.default_currency", "USD")

	// Auth defaults
	v.SetDefault("auth.static_api_keys", "")

	// Rate limit defaults
	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 5)

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Queue defaults
	v.SetDefault("queue.poll_interval_secs", 10)
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.concurrency", 3)

	// Notify defaults
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("notify.region", "us-east-1")
	v.SetDefault("notify.from_address", "alerts@invoicelens.local")
	v.SetDefault("notify.from_name", "InvoiceLens")
	v.SetDefault("notify.recipients", "")
	v.SetDefault("notify.min_score", 0.7)
	v.SetDefault("notify.base_url", "http://localhost:8080")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                       "INVOICELENS_SERVER_PORT",
		"server.read_timeout":               "INVOICELENS_SERVER_READ_TIMEOUT",
		"server.write_timeout":              "INVOICELENS_SERVER_WRITE_TIMEOUT",
		"server.environment":                "INVOICELENS_SERVER_ENVIRONMENT",
		"db.url":                            "INVOICELENS_DB_URL",
		"db.host":                           "INVOICELENS_DB_HOST",
		"db.port":                           "INVOICELENS_DB_PORT",
		"db.user":                           "INVOICELENS_DB_USER",
		"db.password":                       "INVOICELENS_DB_PASSWORD",
		"db.name":                           "INVOICELENS_DB_NAME",
		"db.sslmode":                        "INVOICELENS_DB_SSLMODE",
		"db.max_open":                       "INVOICELENS_DB_MAX_OPEN",
		"db.max_idle":                       "INVOICELENS_DB_MAX_IDLE",
		"s3.region":                         "INVOICELENS_S3_REGION",
		"s3.bucket":                         "INVOICELENS_S3_BUCKET",
		"s3.endpoint":                       "INVOICELENS_S3_ENDPOINT",
		"s3.access_key":                     "INVOICELENS_S3_ACCESS_KEY",
		"s3.secret_key":                     "INVOICELENS_S3_SECRET_KEY",
		"s3.presign_expiry":                 "INVOICELENS_S3_PRESIGN_EXPIRY",
		"upload.max_file_size_mb":           "INVOICELENS_UPLOAD_MAX_FILE_SIZE_MB",
		"upload.extensions":                 "INVOICELENS_UPLOAD_EXTENSIONS",
		"upload.max_pdf_pages":              "INVOICELENS_UPLOAD_MAX_PDF_PAGES",
		"extractor.primary.provider":        "INVOICELENS_EXTRACTOR_PRIMARY_PROVIDER",
		"extractor.primary.api_key":         "INVOICELENS_EXTRACTOR_PRIMARY_API_KEY",
		"extractor.primary.default_model":   "INVOICELENS_EXTRACTOR_PRIMARY_DEFAULT_MODEL",
		"extractor.primary.timeout_secs":    "INVOICELENS_EXTRACTOR_PRIMARY_TIMEOUT_SECS",
		"extractor.secondary.provider":      "INVOICELENS_EXTRACTOR_SECONDARY_PROVIDER",
		"extractor.secondary.api_key":       "INVOICELENS_EXTRACTOR_SECONDARY_API_KEY",
		"extractor.secondary.default_model": "INVOICELENS_EXTRACTOR_SECONDARY_DEFAULT_MODEL",
		"extractor.secondary.timeout_secs":  "INVOICELENS_EXTRACTOR_SECONDARY_TIMEOUT_SECS",
		"extractor.language":                "INVOICELENS_EXTRACTOR_LANGUAGE",
		"extractor.processing_timeout_secs": "INVOICELENS_EXTRACTOR_PROCESSING_TIMEOUT_SECS",
		"ingest.tolerance":                  "INVOICELENS_INGEST_TOLERANCE",
		"ingest.round_number_threshold":     "INVOICELENS_INGEST_ROUND_NUMBER_THRESHOLD",
		"ingest.default_currency":           "INVOICELENS_INGEST_DEFAULT_CURRENCY",
		"auth.static_api_keys":              "INVOICELENS_AUTH_STATIC_API_KEYS",
		"rate_limit.requests_per_minute":    "INVOICELENS_RATE_LIMIT_REQUESTS_PER_MINUTE",
		"rate_limit.burst":                  "INVOICELENS_RATE_LIMIT_BURST",
		"cors.allowed_origins":              "INVOICELENS_CORS_ALLOWED_ORIGINS",
		"queue.poll_interval_secs":          "INVOICELENS_QUEUE_POLL_INTERVAL_SECS",
		"queue.max_attempts":                "INVOICELENS_QUEUE_MAX_ATTEMPTS",
		"queue.concurrency":                 "INVOICELENS_QUEUE_CONCURRENCY",
		"notify.provider":                   "INVOICELENS_NOTIFY_PROVIDER",
		"notify.region":                     "INVOICELENS_NOTIFY_REGION",
		"notify.from_address":               "INVOICELENS_NOTIFY_FROM_ADDRESS",
		"notify.from_name":                  "INVOICELENS_NOTIFY_FROM_NAME",
		"notify.recipients":                 "INVOICELENS_NOTIFY_RECIPIENTS",
		"notify.min_score":                  "INVOICELENS_NOTIFY_MIN_SCORE",
		"notify.base_url":                   "INVOICELENS_NOTIFY_BASE_URL",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if INVOICELENS_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("INVOICELENS_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		URL:      v.GetString("db.url"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}

	extensions := splitList(v.GetString("upload.extensions"))
	for i := range extensions {
		extensions[i] = strings.ToLower(strings.TrimPrefix(extensions[i], "."))
	}
	cfg.Upload = UploadConfig{
		MaxFileSizeMB: v.GetInt64("upload.max_file_size_mb"),
		Extensions:    extensions,
		MaxPDFPages:   v.GetInt("upload.max_pdf_pages"),
	}

	cfg.Extractor = ExtractorConfig{
		Primary: ExtractorProviderConfig{
			Provider:     v.GetString("extractor.primary.provider"),
			APIKey:       v.GetString("extractor.primary.api_key"),
			DefaultModel: v.GetString("extractor.primary.default_model"),
			TimeoutSecs:  v.GetInt("extractor.primary.timeout_secs"),
		},
		Secondary: ExtractorProviderConfig{
			Provider:     v.GetString("extractor.secondary.provider"),
			APIKey:       v.GetString("extractor.secondary.api_key"),
			DefaultModel: v.GetString("extractor.secondary.default_model"),
			TimeoutSecs:  v.GetInt("extractor.secondary.timeout_secs"),
		},
		Language:              v.GetString("extractor.language"),
		ProcessingTimeoutSecs: v.GetInt("extractor.processing_timeout_secs"),
	}
	if lang := cfg.Extractor.Language; lang != "en" && lang != "multi" {
		return nil, fmt.Errorf("config: extractor.language must be \"en\" or \"multi\", got %q", lang)
	}

	cfg.Ingest = IngestConfig{
		Tolerance:            v.GetString("ingest.tolerance"),
		RoundNumberThreshold: v.GetString("ingest.round_number_threshold"),
		DefaultCurrency:      strings.ToUpper(v.GetString("ingest.default_currency")),
	}

	cfg.Auth = AuthConfig{
		StaticAPIKeys: splitList(v.GetString("auth.static_api_keys")),
	}
	cfg.RateLimit = RateLimitConfig{
		RequestsPerMinute: v.GetInt("rate_limit.requests_per_minute"),
		Burst:             v.GetInt("rate_limit.burst"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}
	cfg.Queue = QueueConfig{
		PollIntervalSecs: v.GetInt("queue.poll_interval_secs"),
		MaxAttempts:      v.GetInt("queue.max_attempts"),
		Concurrency:      v.GetInt("queue.concurrency"),
	}
	cfg.Notify = NotifyConfig{
		Provider:    v.GetString("notify.provider"),
		Region:      v.GetString("notify.region"),
		FromAddress: v.GetString("notify.from_address"),
		FromName:    v.GetString("notify.from_name"),
		Recipients:  splitList(v.GetString("notify.recipients")),
		MinScore:    v.GetFloat64("notify.min_score"),
		BaseURL:     v.GetString("notify.base_url"),
	}

	return cfg, nil
}

// splitList parses a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
