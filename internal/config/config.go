// Package config loads server configuration from the environment, an
// optional .env file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys, as environment variable names.
const (
	KeyPort               = "PORT"
	KeyDatabaseURL        = "DATABASE_URL"
	KeyTempDir            = "TEMP_DIR"
	KeyRequestTimeout     = "REQUEST_TIMEOUT"
	KeyMaxInFlight        = "MAX_IN_FLIGHT"
	KeyRateLimitRPS       = "RATE_LIMIT_RPS"
	KeyRateLimitBurst     = "RATE_LIMIT_BURST"
	KeyCORSOrigins        = "CORS_ALLOWED_ORIGINS"
	KeyPlayground         = "GRAPHQL_PLAYGROUND"
	KeyFacturapiKey       = "FACTURAPI_KEY"
	KeyFacturapiBaseURL   = "FACTURAPI_BASE_URL"
	KeyOpenAIKey          = "OPENAI_API_KEY"
	KeyOpenAIModel        = "OPENAI_MODEL"
	KeyOpenAIBaseURL      = "OPENAI_BASE_URL"
	KeySMTPHost           = "SMTP_HOST"
	KeySMTPPort           = "SMTP_PORT"
	KeySMTPUsername       = "SMTP_USERNAME"
	KeySMTPPassword       = "SMTP_PASSWORD"
	KeySMTPFrom           = "SMTP_FROM"
	KeyTwilioSID          = "TWILIO_ACCOUNT_SID"
	KeyTwilioToken        = "TWILIO_AUTH_TOKEN"
	KeyTwilioSMSFrom      = "TWILIO_SMS_FROM"
	KeyTwilioWhatsAppFrom = "TWILIO_WHATSAPP_FROM"
	KeyArchiveBucket      = "ARCHIVE_BUCKET"
	KeyArchiveRegion      = "ARCHIVE_REGION"
	KeyArchiveEndpoint    = "ARCHIVE_ENDPOINT"
	KeyOTLPEndpoint       = "OTEL_EXPORTER_OTLP_ENDPOINT"
	KeyLogLevel           = "LOG_LEVEL"
	KeyLogFormat          = "LOG_FORMAT"
)

// Config is the full server configuration.
type Config struct {
	Port           int
	DatabaseURL    string
	TempDir        string
	RequestTimeout time.Duration
	MaxInFlight    int
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	Playground     bool

	Facturapi Facturapi
	OpenAI    OpenAI
	SMTP      SMTP
	Twilio    Twilio
	Archive   Archive

	OTLPEndpoint string
	LogLevel     string
	LogFormat    string
}

// Facturapi configures the invoicing provider.
type Facturapi struct {
	Key     string
	BaseURL string
}

// OpenAI configures the summarizer. An empty APIKey disables it.
type OpenAI struct {
	APIKey  string
	Model   string
	BaseURL string
}

// SMTP configures email delivery. An empty Host disables it.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Twilio configures SMS and WhatsApp delivery.
type Twilio struct {
	AccountSID   string
	AuthToken    string
	SMSFrom      string
	WhatsAppFrom string
}

// Archive configures PDF archiving. An empty Bucket disables it.
type Archive struct {
	Bucket   string
	Region   string
	Endpoint string
}

// Enabled reports whether messages can be sent at all.
func (t Twilio) Enabled() bool { return t.AccountSID != "" && t.AuthToken != "" }

// NewViper returns a viper instance with defaults set and the process
// environment bound. If envFile names an existing file it is read as a
// dotenv file; environment variables still take precedence.
func NewViper(envFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envFile == "" {
		return v, nil
	}
	if _, err := os.Stat(envFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("stat env file: %w", err)
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read env file %s: %w", envFile, err)
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, 4000)
	v.SetDefault(KeyDatabaseURL, "")
	v.SetDefault(KeyTempDir, "temp")
	v.SetDefault(KeyRequestTimeout, 60*time.Second)
	v.SetDefault(KeyMaxInFlight, 16)
	v.SetDefault(KeyRateLimitRPS, 20.0)
	v.SetDefault(KeyRateLimitBurst, 40)
	v.SetDefault(KeyCORSOrigins, "")
	v.SetDefault(KeyPlayground, false)
	v.SetDefault(KeyFacturapiKey, "")
	v.SetDefault(KeyFacturapiBaseURL, "https://www.facturapi.io/v2")
	v.SetDefault(KeyOpenAIKey, "")
	v.SetDefault(KeyOpenAIModel, "gpt-4o-mini")
	v.SetDefault(KeyOpenAIBaseURL, "")
	v.SetDefault(KeySMTPHost, "")
	v.SetDefault(KeySMTPPort, 587)
	v.SetDefault(KeySMTPUsername, "")
	v.SetDefault(KeySMTPPassword, "")
	v.SetDefault(KeySMTPFrom, "")
	v.SetDefault(KeyTwilioSID, "")
	v.SetDefault(KeyTwilioToken, "")
	v.SetDefault(KeyTwilioSMSFrom, "")
	v.SetDefault(KeyTwilioWhatsAppFrom, "")
	v.SetDefault(KeyArchiveBucket, "")
	v.SetDefault(KeyArchiveRegion, "us-east-1")
	v.SetDefault(KeyArchiveEndpoint, "")
	v.SetDefault(KeyOTLPEndpoint, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// Load reads a Config from v and validates it. A relative TempDir is
// resolved against the directory of the running executable.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:           v.GetInt(KeyPort),
		DatabaseURL:    strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		TempDir:        v.GetString(KeyTempDir),
		RequestTimeout: v.GetDuration(KeyRequestTimeout),
		MaxInFlight:    v.GetInt(KeyMaxInFlight),
		RateLimitRPS:   v.GetFloat64(KeyRateLimitRPS),
		RateLimitBurst: v.GetInt(KeyRateLimitBurst),
		CORSOrigins:    splitList(v.GetString(KeyCORSOrigins)),
		Playground:     v.GetBool(KeyPlayground),
		Facturapi: Facturapi{
			Key:     v.GetString(KeyFacturapiKey),
			BaseURL: v.GetString(KeyFacturapiBaseURL),
		},
		OpenAI: OpenAI{
			APIKey:  v.GetString(KeyOpenAIKey),
			Model:   v.GetString(KeyOpenAIModel),
			BaseURL: v.GetString(KeyOpenAIBaseURL),
		},
		SMTP: SMTP{
			Host:     v.GetString(KeySMTPHost),
			Port:     v.GetInt(KeySMTPPort),
			Username: v.GetString(KeySMTPUsername),
			Password: v.GetString(KeySMTPPassword),
			From:     v.GetString(KeySMTPFrom),
		},
		Twilio: Twilio{
			AccountSID:   v.GetString(KeyTwilioSID),
			AuthToken:    v.GetString(KeyTwilioToken),
			SMSFrom:      v.GetString(KeyTwilioSMSFrom),
			WhatsAppFrom: v.GetString(KeyTwilioWhatsAppFrom),
		},
		Archive: Archive{
			Bucket:   v.GetString(KeyArchiveBucket),
			Region:   v.GetString(KeyArchiveRegion),
			Endpoint: v.GetString(KeyArchiveEndpoint),
		},
		OTLPEndpoint: v.GetString(KeyOTLPEndpoint),
		LogLevel:     strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:    strings.ToLower(v.GetString(KeyLogFormat)),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	dir, err := resolveTempDir(cfg.TempDir)
	if err != nil {
		return Config{}, err
	}
	cfg.TempDir = dir
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s: %d out of range", KeyPort, c.Port))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyRequestTimeout))
	}
	if c.MaxInFlight <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyMaxInFlight))
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, fmt.Errorf("%s and %s must not be negative", KeyRateLimitRPS, KeyRateLimitBurst))
	}
	if c.Facturapi.Key == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyFacturapiKey))
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s is set", KeySMTPFrom, KeySMTPHost))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%s: unknown format %q", KeyLogFormat, c.LogFormat))
	}
	return errors.Join(errs...)
}

func resolveTempDir(dir string) (string, error) {
	if dir == "" {
		dir = "temp"
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), dir), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
