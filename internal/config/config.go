package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"familytrack/internal/core/tracker"
	"familytrack/internal/worker"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Tracking TrackingConfig `yaml:"tracking"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port" validate:"required,numeric"`
	LogLevel string `yaml:"logLevel"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver" validate:"oneof=mongo postgres memory"`
	MongoURI      string `yaml:"mongoUri" validate:"required_if=Driver mongo"`
	MongoDatabase string `yaml:"mongoDatabase" validate:"required_if=Driver mongo"`
	PostgresDSN   string `yaml:"postgresDsn" validate:"required_if=Driver postgres"`
}

// RedisConfig selects the shared cache. An empty URL keeps state in process memory.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds the secret shared with the auth service. Empty disables token checks.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

type TrackingConfig struct {
	Freshness           time.Duration `yaml:"freshness" validate:"gt=0"`
	Retention           time.Duration `yaml:"retention" validate:"gtefield=Freshness"`
	MembershipTTL       time.Duration `yaml:"membershipTtl" validate:"gt=0"`
	PreviousTTL         time.Duration `yaml:"previousTtl" validate:"gt=0"`
	ProximityMeters     float64       `yaml:"proximityMeters" validate:"gt=0"`
	ProximityDebounce   bool          `yaml:"proximityDebounce"`
	SpeedThresholdMps   float64       `yaml:"speedThresholdMps" validate:"gt=0"`
	InactivityThreshold time.Duration `yaml:"inactivityThreshold" validate:"gt=0"`
	SweepInterval       time.Duration `yaml:"sweepInterval" validate:"gt=0"`
	MaxClockSkew        time.Duration `yaml:"maxClockSkew" validate:"gt=0"`
}

type NotifyConfig struct {
	Channels       []string      `yaml:"channels" validate:"dive,oneof=kakao sms push in_app"`
	KakaoBaseURL   string        `yaml:"kakaoBaseUrl" validate:"omitempty,url"`
	KakaoToken     string        `yaml:"kakaoToken"`
	LinkURL        string        `yaml:"linkUrl"`
	SMSWebhookURL  string        `yaml:"smsWebhookUrl" validate:"omitempty,url"`
	PushWebhookURL string        `yaml:"pushWebhookUrl" validate:"omitempty,url"`
	Workers        int           `yaml:"workers" validate:"gte=1"`
	MaxAttempts    int           `yaml:"maxAttempts" validate:"gte=1"`
	BackoffBase    time.Duration `yaml:"backoffBase" validate:"gt=0"`
}

// Options converts the tracking section for the tracker package.
func (t TrackingConfig) Options() tracker.Options {
	return tracker.Options{
		Freshness:           t.Freshness,
		Retention:           t.Retention,
		MembershipTTL:       t.MembershipTTL,
		PreviousTTL:         t.PreviousTTL,
		ProximityMeters:     t.ProximityMeters,
		ProximityDebounce:   t.ProximityDebounce,
		SpeedThresholdMps:   t.SpeedThresholdMps,
		InactivityThreshold: t.InactivityThreshold,
		SweepInterval:       t.SweepInterval,
		MaxClockSkew:        t.MaxClockSkew,
	}
}

func Default() *Config {
	opts := tracker.DefaultOptions()
	driver := "mongo"
	if strings.ToLower(os.Getenv("TEST_MODE")) == "true" {
		driver = "memory"
	}

	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: "8000", LogLevel: "info"},
		Storage: StorageConfig{
			Driver:        driver,
			MongoDatabase: "familytrack",
		},
		Tracking: TrackingConfig{
			Freshness:           opts.Freshness,
			Retention:           opts.Retention,
			MembershipTTL:       opts.MembershipTTL,
			PreviousTTL:         opts.PreviousTTL,
			ProximityMeters:     opts.ProximityMeters,
			ProximityDebounce:   opts.ProximityDebounce,
			SpeedThresholdMps:   opts.SpeedThresholdMps,
			InactivityThreshold: opts.InactivityThreshold,
			SweepInterval:       opts.SweepInterval,
			MaxClockSkew:        opts.MaxClockSkew,
		},
		Notify: NotifyConfig{
			Channels:    []string{"in_app"},
			Workers:     4,
			MaxAttempts: worker.DefaultMaxAttempts,
			BackoffBase: worker.DefaultBackoffBase,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file at path and the
// environment (a .env file in the working directory is honored), in that order.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	env := envReader{errs: &errs}

	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", cfg.Server.LogLevel)

	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.MongoURI = getEnv("MONGODB_URI", cfg.Storage.MongoURI)
	cfg.Storage.MongoDatabase = getEnv("MONGODB_DATABASE", cfg.Storage.MongoDatabase)
	cfg.Storage.PostgresDSN = getEnv("POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	cfg.Auth.JWTSecret = getEnv("JWT_ACCESS_SECRET", cfg.Auth.JWTSecret)

	t := &cfg.Tracking
	t.Freshness = env.duration("POSITION_FRESHNESS", t.Freshness)
	t.Retention = env.duration("POSITION_RETENTION", t.Retention)
	t.MembershipTTL = env.duration("MEMBERSHIP_TTL", t.MembershipTTL)
	t.PreviousTTL = env.duration("PREVIOUS_SAMPLE_TTL", t.PreviousTTL)
	t.ProximityMeters = env.float("PROXIMITY_METERS", t.ProximityMeters)
	t.ProximityDebounce = env.bool("PROXIMITY_DEBOUNCE", t.ProximityDebounce)
	t.SpeedThresholdMps = env.float("SPEED_THRESHOLD_MPS", t.SpeedThresholdMps)
	t.InactivityThreshold = env.duration("INACTIVITY_THRESHOLD", t.InactivityThreshold)
	t.SweepInterval = env.duration("SWEEP_INTERVAL", t.SweepInterval)
	t.MaxClockSkew = env.duration("MAX_CLOCK_SKEW", t.MaxClockSkew)

	n := &cfg.Notify
	if v := getEnv("NOTIFY_CHANNELS", ""); v != "" {
		n.Channels = splitList(v)
	}
	n.KakaoBaseURL = getEnv("KAKAO_BASE_URL", n.KakaoBaseURL)
	n.KakaoToken = getEnv("KAKAO_ACCESS_TOKEN", n.KakaoToken)
	n.LinkURL = getEnv("WEB_APP_URL", n.LinkURL)
	n.SMSWebhookURL = getEnv("SMS_WEBHOOK_URL", n.SMSWebhookURL)
	n.PushWebhookURL = getEnv("PUSH_WEBHOOK_URL", n.PushWebhookURL)
	n.Workers = env.int("NOTIFY_WORKERS", n.Workers)
	n.MaxAttempts = env.int("NOTIFY_MAX_ATTEMPTS", n.MaxAttempts)
	n.BackoffBase = env.duration("NOTIFY_BACKOFF", n.BackoffBase)

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.TrimSpace(value)
}

// envReader parses typed variables and collects the failures.
type envReader struct {
	errs *[]error
}

func (r envReader) fail(key string, err error) {
	*r.errs = append(*r.errs, fmt.Errorf("%s: %w", key, err))
}

func (r envReader) duration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r envReader) float(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return f
}

func (r envReader) int(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return i
}

func (r envReader) bool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
