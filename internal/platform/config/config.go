package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration.
type Config struct {
	Port          string
	IsProduction  bool
	EnableDBCheck bool

	StorageDriver  string
	DatabaseURL    string
	SQLitePath     string
	MigrationsPath string

	// Recompute conflict handling
	RecomputeMaxRetries   int
	RecomputeRetryBackoff time.Duration

	RateLimit          string   // ulule/limiter formatted rate, e.g. "100-M"
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Ledger line event consumer; disabled when KafkaBrokers is empty.
	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`
	KafkaGroupID string   `mapstructure:"KAFKA_GROUP_ID"`

	// Full recompute before serving, for stores loaded with skipRecompute or by hand.
	ResetOnStartup bool `mapstructure:"RESET_ON_STARTUP"`

	// Scheduled full recompute; disabled when RepairSchedule is empty.
	RepairSchedule string `mapstructure:"REPAIR_SCHEDULE"`
	RepairTimezone string `mapstructure:"REPAIR_TIMEZONE"`
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("STORAGE_DRIVER", DriverPostgres)
	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("SQLITE_PATH", "ledger_balances.db")
	viper.SetDefault("MIGRATIONS_PATH", "file://migrations")
	viper.SetDefault("RECOMPUTE_MAX_RETRIES", 3)
	viper.SetDefault("RECOMPUTE_RETRY_BACKOFF", "50ms")
	viper.SetDefault("RATE_LIMIT", "600-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_TOPIC", "ledger-line-events")
	viper.SetDefault("KAFKA_GROUP_ID", "ledger-balances")
	viper.SetDefault("RESET_ON_STARTUP", false)
	viper.SetDefault("REPAIR_SCHEDULE", "")
	viper.SetDefault("REPAIR_TIMEZONE", "UTC")

	// Values from the environment override defaults and .env entries.
	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.Port = viper.GetString("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080" // Default port
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")

	cfg.StorageDriver = strings.ToLower(viper.GetString("STORAGE_DRIVER"))
	switch cfg.StorageDriver {
	case DriverPostgres, DriverSQLite:
	default:
		log.Printf("Warning: unknown STORAGE_DRIVER ('%s'). Defaulting to %s.\n", cfg.StorageDriver, DriverPostgres)
		cfg.StorageDriver = DriverPostgres
	}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.StorageDriver == DriverPostgres && cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}
	cfg.SQLitePath = viper.GetString("SQLITE_PATH")
	cfg.MigrationsPath = viper.GetString("MIGRATIONS_PATH")

	cfg.RecomputeMaxRetries = viper.GetInt("RECOMPUTE_MAX_RETRIES")
	if cfg.RecomputeMaxRetries < 0 {
		log.Printf("Warning: negative RECOMPUTE_MAX_RETRIES (%d). Disabling retries.\n", cfg.RecomputeMaxRetries)
		cfg.RecomputeMaxRetries = 0
	}

	backoffStr := viper.GetString("RECOMPUTE_RETRY_BACKOFF")
	backoff, err := time.ParseDuration(backoffStr)
	if err != nil {
		backoff = 50 * time.Millisecond
		log.Printf("Warning: Invalid value for RECOMPUTE_RETRY_BACKOFF ('%s'). Defaulting to %s.\n", backoffStr, backoff.String())
	}
	cfg.RecomputeRetryBackoff = backoff

	cfg.RateLimit = viper.GetString("RATE_LIMIT")
	cfg.CORSAllowedOrigins = splitList(viper.GetString("CORS_ALLOWED_ORIGINS"))

	cfg.KafkaBrokers = splitList(viper.GetString("KAFKA_BROKERS"))
	cfg.KafkaTopic = viper.GetString("KAFKA_TOPIC")
	cfg.KafkaGroupID = viper.GetString("KAFKA_GROUP_ID")

	cfg.ResetOnStartup = viper.GetBool("RESET_ON_STARTUP")
	cfg.RepairSchedule = viper.GetString("REPAIR_SCHEDULE")
	cfg.RepairTimezone = viper.GetString("REPAIR_TIMEZONE")

	return cfg, nil
}

// splitList parses a comma separated env value, dropping blanks.
func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
