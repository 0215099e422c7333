package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Fee       FeeConfig
	Counter   CounterConfig
	Reminder  ReminderConfig
	Storage   StorageConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	MigrateOnStart  bool // apply the embedded migrations before serving
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
	RateLimit        int           // write requests per tenant per RateWindow, 0 disables
	RateWindow       time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// FeeConfig holds payment numbering and reminder policy
type FeeConfig struct {
	ReceiptPrefix           string
	InvoicePrefix           string
	EMIReminderLeadDays     int
	MonthlyReminderLeadDays int
	PartialPaymentCadence   string // DAILY, WEEKLY, MONTHLY
	Timezone                string
}

// Location resolves Timezone, falling back to UTC.
func (f FeeConfig) Location() *time.Location {
	if f.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CounterConfig selects the receipt/invoice sequence store
type CounterConfig struct {
	Backend string // db or redis
	KeyTTL  time.Duration
}

// ReminderConfig holds the reminder sweep settings
type ReminderConfig struct {
	Enabled        bool
	Interval       time.Duration
	BatchSize      int
	Dispatcher     string // log or sendgrid
	SendGridAPIKey string
	FromAddress    string
	FromName       string
}

// StorageConfig points the invoice archive at an S3-compatible bucket
type StorageConfig struct {
	Enabled           bool
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
}

// Counter and dispatcher choices
const (
	CounterBackendDB    = "db"
	CounterBackendRedis = "redis"

	DispatcherLog      = "log"
	DispatcherSendGrid = "sendgrid"
)

// Load reads configuration. Priority, highest first:
//  1. ACADEMY_ environment variables (e.g. ACADEMY_DATABASE_PASSWORD)
//  2. a .env file in the working directory
//  3. config.toml
//  4. built-in defaults
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ACADEMY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			MigrateOnStart:  v.GetBool("database.migrate_on_start"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			RateLimit:        v.GetInt("http.rate_limit"),
			RateWindow:       v.GetDuration("http.rate_window"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Fee: FeeConfig{
			ReceiptPrefix:           v.GetString("fee.receipt_prefix"),
			InvoicePrefix:           v.GetString("fee.invoice_prefix"),
			EMIReminderLeadDays:     v.GetInt("fee.emi_reminder_lead_days"),
			MonthlyReminderLeadDays: v.GetInt("fee.monthly_reminder_lead_days"),
			PartialPaymentCadence:   v.GetString("fee.partial_payment_cadence"),
			Timezone:                v.GetString("fee.timezone"),
		},
		Counter: CounterConfig{
			Backend: v.GetString("counter.backend"),
			KeyTTL:  v.GetDuration("counter.key_ttl"),
		},
		Reminder: ReminderConfig{
			Enabled:        v.GetBool("reminder.enabled"),
			Interval:       v.GetDuration("reminder.interval"),
			BatchSize:      v.GetInt("reminder.batch_size"),
			Dispatcher:     v.GetString("reminder.dispatcher"),
			SendGridAPIKey: v.GetString("reminder.sendgrid_api_key"),
			FromAddress:    v.GetString("reminder.from_address"),
			FromName:       v.GetString("reminder.from_name"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills every empty field with its default
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "academy-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "academy"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.RateWindow == 0 {
		cfg.HTTP.RateWindow = time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Fee.ReceiptPrefix == "" {
		cfg.Fee.ReceiptPrefix = "RCP"
	}
	if cfg.Fee.InvoicePrefix == "" {
		cfg.Fee.InvoicePrefix = "INV"
	}
	if cfg.Fee.EMIReminderLeadDays == 0 {
		cfg.Fee.EMIReminderLeadDays = 3
	}
	if cfg.Fee.MonthlyReminderLeadDays == 0 {
		cfg.Fee.MonthlyReminderLeadDays = 3
	}
	if cfg.Fee.PartialPaymentCadence == "" {
		cfg.Fee.PartialPaymentCadence = "DAILY"
	}
	if cfg.Counter.Backend == "" {
		cfg.Counter.Backend = CounterBackendDB
	}
	if cfg.Counter.KeyTTL == 0 {
		// a monthly bucket never needs to outlive its month by much
		cfg.Counter.KeyTTL = 45 * 24 * time.Hour
	}
	if cfg.Reminder.Interval == 0 {
		cfg.Reminder.Interval = 15 * time.Minute
	}
	if cfg.Reminder.BatchSize == 0 {
		cfg.Reminder.BatchSize = 100
	}
	if cfg.Reminder.Dispatcher == "" {
		cfg.Reminder.Dispatcher = DispatcherLog
	}
	if cfg.Reminder.FromName == "" {
		cfg.Reminder.FromName = "Academy Accounts"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "academy-invoices"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	switch c.Counter.Backend {
	case CounterBackendDB, CounterBackendRedis:
	default:
		return fmt.Errorf("counter.backend must be %q or %q, got %q", CounterBackendDB, CounterBackendRedis, c.Counter.Backend)
	}
	if c.Fee.EMIReminderLeadDays < 0 || c.Fee.MonthlyReminderLeadDays < 0 {
		return fmt.Errorf("fee reminder lead days cannot be negative")
	}
	switch c.Fee.PartialPaymentCadence {
	case "DAILY", "WEEKLY", "MONTHLY":
	default:
		return fmt.Errorf("fee.partial_payment_cadence must be DAILY, WEEKLY or MONTHLY, got %q", c.Fee.PartialPaymentCadence)
	}
	if c.Fee.Timezone != "" {
		if _, err := time.LoadLocation(c.Fee.Timezone); err != nil {
			return fmt.Errorf("fee.timezone: %w", err)
		}
	}

	switch c.Reminder.Dispatcher {
	case DispatcherLog:
	case DispatcherSendGrid:
		if c.Reminder.SendGridAPIKey == "" {
			return fmt.Errorf("reminder.sendgrid_api_key is required when reminder.dispatcher is sendgrid")
		}
		if c.Reminder.FromAddress == "" {
			return fmt.Errorf("reminder.from_address is required when reminder.dispatcher is sendgrid")
		}
	default:
		return fmt.Errorf("reminder.dispatcher must be %q or %q, got %q", DispatcherLog, DispatcherSendGrid, c.Reminder.Dispatcher)
	}

	if c.Storage.Enabled && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("storage.access_key and storage.secret_key are required when storage is enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
