package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"farmlink/internal/domain"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	JWT       JWTConfig       `toml:"jwt"`
	Referral  ReferralConfig  `toml:"referral"`
	Log       LogConfig       `toml:"log"`
	CORS      CORSConfig      `toml:"cors"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

type ServerConfig struct {
	Port         string        `toml:"port" validate:"required"`
	Env          string        `toml:"env" validate:"oneof=development staging production"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn" validate:"required"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	MaxOpenConns    int           `toml:"max_open_conns" validate:"gt=0"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	Tracing         bool          `toml:"tracing"`
}

type JWTConfig struct {
	AccessSecret string        `toml:"access_secret" validate:"required"`
	AccessExpiry time.Duration `toml:"access_expiry"`
	Issuer       string        `toml:"issuer"`
}

// ReferralConfig carries the reward constants plus the knobs of the
// transactional machinery around them.
type ReferralConfig struct {
	Policy      domain.RewardPolicy `toml:"policy"`
	CodeRetries int                 `toml:"code_retries" validate:"gt=0"`
	TxAttempts  int                 `toml:"tx_attempts" validate:"gt=0"`
	OpTimeout   time.Duration       `toml:"op_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `toml:"format" validate:"oneof=json text"`
}

type CORSConfig struct {
	AllowOrigins []string `toml:"allow_origins"`
}

type RateLimitConfig struct {
	Requests int           `toml:"requests" validate:"gt=0"`
	Window   time.Duration `toml:"window" validate:"gt=0"`
}

// Default returns the built-in configuration used for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8099",
			Env:          "development",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             "farmlink:farmlink@tcp(localhost:3306)/farmlink?charset=utf8mb4&parseTime=True&loc=UTC",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: "change-me-in-production",
			AccessExpiry: 15 * time.Minute,
			Issuer:       "farmlink",
		},
		Referral: ReferralConfig{
			Policy:      domain.DefaultRewardPolicy(),
			CodeRetries: 10,
			TxAttempts:  3,
			OpTimeout:   5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
		},
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   60 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file and the
// environment (a .env file in the working directory is read first), then
// validates it. The result is treated as immutable after startup.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	cfg := Default()
	if path == "" {
		path = os.Getenv("FARMLINK_CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the cross-field reward constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	p := cfg.Referral.Policy
	if p.FreeDeliveriesPerReferral > p.MaxLifetimeFreeDeliveries {
		return fmt.Errorf("config: free_deliveries_per_referral (%d) exceeds max_lifetime_free_deliveries (%d)",
			p.FreeDeliveriesPerReferral, p.MaxLifetimeFreeDeliveries)
	}
	if p.CashbackPerFarmerReferralCents > p.MaxLifetimeCashbackCents {
		return fmt.Errorf("config: cashback_per_farmer_referral_cents (%d) exceeds max_lifetime_cashback_cents (%d)",
			p.CashbackPerFarmerReferralCents, p.MaxLifetimeCashbackCents)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Server.Env = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DB_TRACING"); v != "" {
		cfg.Database.Tracing = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("JWT_ACCESS_SECRET"); v != "" {
		cfg.JWT.AccessSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		cfg.CORS.AllowOrigins = strings.Split(v, ",")
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns},
		{"DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns},
		{"MAX_LIFETIME_FREE_DELIVERIES", &cfg.Referral.Policy.MaxLifetimeFreeDeliveries},
		{"FREE_DELIVERIES_PER_REFERRAL", &cfg.Referral.Policy.FreeDeliveriesPerReferral},
		{"REFERRAL_CODE_RETRIES", &cfg.Referral.CodeRetries},
		{"REFERRAL_TX_ATTEMPTS", &cfg.Referral.TxAttempts},
	}
	for _, e := range ints {
		n, ok, err := intFromEnv(e.key)
		if err != nil {
			return err
		}
		if ok {
			*e.dst = n
		}
	}

	cents := []struct {
		key string
		dst *int64
	}{
		{"MAX_LIFETIME_CASHBACK_CENTS", &cfg.Referral.Policy.MaxLifetimeCashbackCents},
		{"CASHBACK_PER_FARMER_REFERRAL_CENTS", &cfg.Referral.Policy.CashbackPerFarmerReferralCents},
	}
	for _, e := range cents {
		n, ok, err := intFromEnv(e.key)
		if err != nil {
			return err
		}
		if ok {
			*e.dst = int64(n)
		}
	}
	return nil
}

func intFromEnv(key string) (int, bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, true, nil
}
